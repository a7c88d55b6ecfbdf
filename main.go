package main

import "github.com/frahmantamala/qr-document/cmd"

func main() {
	cmd.Execute()
}
