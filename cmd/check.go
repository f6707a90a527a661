package cmd

import (
	"fmt"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/cottand/kor/internal/log"
	"github.com/cottand/kor/kor"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"strings"
)

var CheckCmd = &cobra.Command{
	Use:          "check file.yaml",
	Short:        "Type-check a kor module fixture",
	RunE:         runCheck,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var (
	logLevel   *int
	printTypes *bool
)

func init() {
	logLevel = CheckCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	printTypes = CheckCmd.Flags().BoolP("print-types", "t", false, "print the signature of every checked definition")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read target: %w", err)
	}

	result, db, err := kor.Check(src)
	if err != nil {
		return fmt.Errorf("could not check module (this is a bug and not a compile error): %w", err)
	}

	if result.Errors().HasError() {
		sb := &strings.Builder{}
		for _, korError := range result.Errors().Errors() {
			sb.WriteString("\n")
			sb.WriteString(korerr.FormatWithCode(korError))
		}
		return fmt.Errorf("errors found during checking:%s", sb.String())
	}

	if *printTypes {
		for _, group := range result.Module.Defs {
			for _, def := range group.Defs {
				info, ok := db.Lookup(def.Sym.ID)
				if !ok {
					continue
				}
				fmt.Printf("%s : %s / %s\n", def.Sym.Name, info.Block, info.Capt)
			}
		}
	}
	return nil
}
