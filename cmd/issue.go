package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/qrcode"
	"github.com/frahmantamala/qr-document/internal/slip"
	"github.com/frahmantamala/qr-document/internal/user"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a document and write its QR code",
	Long:  `Resolve the user, validate the document fields, issue the document and write the QR code as PNG (and optionally a PDF slip).`,
	RunE:  runIssue,
}

var (
	issueUserID string
	issueTitle  string
	issueAmount string
	issueType   string
	issueOut    string
	issueSlip   string
	issueSize   int
)

func runIssue(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := setupLogger(cfg)
	wf := newWorkflowDeps(cfg, lg)
	defer wf.Bus.Wait()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = internal.ContextWithSessionID(ctx, "cli-issue")

	identity := user.NewIdentity(issueUserID)
	if err := wf.Resolver.Ensure(ctx, &identity); err != nil {
		return fmt.Errorf("cannot issue for user %q: %w", issueUserID, err)
	}

	state := document.NewIssuanceState()
	state.Form = document.Candidate{
		Title:  issueTitle,
		Amount: document.Amount(issueAmount),
		Type:   document.Type(issueType),
	}

	doc, artifact, err := wf.Issuance.Issue(ctx, &state, identity)
	if err != nil {
		if len(state.FieldErrors) > 0 {
			for _, fe := range state.FieldErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
			}
		}
		return err
	}

	png, err := qrcode.NewEncoder().PNG(string(artifact), issueSize)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	if err := os.WriteFile(issueOut, png, 0o644); err != nil {
		return fmt.Errorf("write qr image: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "issued %s (%s, %s) -> %s\n", doc.ID, doc.Type, doc.Department, issueOut)

	if issueSlip != "" {
		pdf, err := slip.NewRenderer().Render(doc, png)
		if err != nil {
			return fmt.Errorf("render slip: %w", err)
		}
		if err := os.WriteFile(issueSlip, pdf, 0o644); err != nil {
			return fmt.Errorf("write slip: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "slip -> %s\n", issueSlip)
	}
	return nil
}

func init() {
	issueCmd.Flags().StringVarP(&issueUserID, "user", "u", "", "id of the issuing user")
	issueCmd.Flags().StringVar(&issueTitle, "title", "", "document title")
	issueCmd.Flags().StringVar(&issueAmount, "amount", "0", "document amount")
	issueCmd.Flags().StringVar(&issueType, "type", string(document.InitialType), "document type")
	issueCmd.Flags().StringVarP(&issueOut, "out", "o", "qr.png", "where to write the QR code image")
	issueCmd.Flags().StringVar(&issueSlip, "slip", "", "optional path for a printable PDF slip")
	issueCmd.Flags().IntVar(&issueSize, "size", qrcode.DefaultSize, "QR image size in pixels")
	_ = issueCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(issueCmd)
}
