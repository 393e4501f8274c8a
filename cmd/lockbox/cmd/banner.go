package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const banner = `
  _            _    _               
 | | ___   ___| | _| |__   _____  __
 | |/ _ \ / __| |/ / '_ \ / _ \ \/ /
 | | (_) | (__|   <| |_) | (_) >  < 
 |_|\___/ \___|_|\_\_.__/ \___/_/\_\
`

var (
	bannerColor  = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printBanner(w io.Writer) {
	bannerColor.Fprint(w, banner)
	successColor.Fprintf(w, "  Local Credential Vault - Version %s\n\n", Version)
}

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}
