package redis_test

import (
	"context"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/session"
	sessionRedis "github.com/frahmantamala/qr-document/internal/session/redis"
	"github.com/frahmantamala/qr-document/internal/user"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

var _ = Describe("Redis session store", func() {
	var (
		mr     *miniredis.Miniredis
		client *goredis.Client
		store  *sessionRedis.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
		client = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		store = sessionRedis.NewStore(client, 5*time.Minute, logger.Discard())
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
	})

	It("should round-trip a session with its identity and errors", func() {
		sess := session.New(session.KindIssue, "user-1")
		sess.Identity.State = user.StateFailed
		sess.Identity.Err = internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
		sess.Issuance.Form = document.Candidate{Title: "memo", Amount: "12.5", Type: document.TypeMemorandum}
		Expect(store.Create(ctx, sess)).To(Succeed())

		got, err := store.Get(ctx, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Issuance.Form).To(Equal(sess.Issuance.Form))
		Expect(got.Identity.Err.Type).To(Equal(internal.ErrorTypeNotFound))
		Expect(got.Identity.Err.StatusCode).To(Equal(404))
	})

	It("should set the ttl on the key", func() {
		sess := session.New(session.KindScan, "user-1")
		Expect(store.Create(ctx, sess)).To(Succeed())
		Expect(mr.TTL("qrdoc:session:" + sess.ID)).To(Equal(5 * time.Minute))
	})

	It("should refuse a duplicate id", func() {
		sess := session.New(session.KindScan, "user-1")
		Expect(store.Create(ctx, sess)).To(Succeed())
		Expect(internal.IsType(store.Create(ctx, sess), internal.ErrorTypeConflict)).To(BeTrue())
	})

	It("should report missing sessions", func() {
		_, err := store.Get(ctx, "missing")
		Expect(err).To(MatchError(internal.ErrSessionNotFound))

		_, err = store.Update(ctx, "missing", func(*session.Session) error { return nil })
		Expect(err).To(MatchError(internal.ErrSessionNotFound))

		Expect(store.Delete(ctx, "missing")).To(MatchError(internal.ErrSessionNotFound))
	})

	It("should expire sessions with the key", func() {
		sess := session.New(session.KindScan, "user-1")
		Expect(store.Create(ctx, sess)).To(Succeed())

		mr.FastForward(6 * time.Minute)

		_, err := store.Get(ctx, sess.ID)
		Expect(err).To(MatchError(internal.ErrSessionNotFound))
	})

	It("should apply an update and keep the previous value when fn fails", func() {
		sess := session.New(session.KindIssue, "user-1")
		Expect(store.Create(ctx, sess)).To(Succeed())

		updated, err := store.Update(ctx, sess.ID, func(s *session.Session) error {
			s.Issuance.Form.Title = "payroll"
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Issuance.Form.Title).To(Equal("payroll"))

		_, err = store.Update(ctx, sess.ID, func(s *session.Session) error {
			s.Issuance.Form.Title = "discarded"
			return internal.ErrSubmissionInFlight
		})
		Expect(err).To(MatchError(internal.ErrSubmissionInFlight))

		got, _ := store.Get(ctx, sess.ID)
		Expect(got.Issuance.Form.Title).To(Equal("payroll"))
	})

	It("should store a form whose amount is not a finite number", func() {
		sess := session.New(session.KindIssue, "user-1")
		Expect(store.Create(ctx, sess)).To(Succeed())

		_, err := store.Update(ctx, sess.ID, func(s *session.Session) error {
			s.Issuance.Form.Amount = document.Amount("Inf")
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		got, err := store.Get(ctx, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Issuance.Form.Amount).To(Equal(document.Amount("Inf")))
	})

	It("should let only one concurrent update move a session into submitting", func() {
		sess := session.New(session.KindIssue, "user-1")
		Expect(store.Create(ctx, sess)).To(Succeed())

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			winners  int
			inFlight int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, sess.ID, func(s *session.Session) error {
					if s.Issuance.InFlight() {
						return internal.ErrSubmissionInFlight
					}
					s.Issuance.Phase = document.PhaseSubmitting
					return nil
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case internal.IsType(err, internal.ErrorTypeConflict):
					inFlight++
				}
			}()
		}
		wg.Wait()

		Expect(winners).To(Equal(1))
		Expect(inFlight).To(Equal(3))
	})

	It("should ping the server", func() {
		Expect(store.Ping(ctx)).To(Succeed())

		down := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		Expect(sessionRedis.NewStore(down, time.Minute, logger.Discard()).Ping(ctx)).NotTo(Succeed())
	})
})
