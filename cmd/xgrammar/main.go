package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ricohasgit/xgrammar/cmd/xgrammar/cli"
)

func main() {
	cobra.CheckErr(cli.NewCLI().ExecuteContext(context.Background()))
}
