package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	flagSet  = flag.NewFlagSet("ocamlcreator", flag.ContinueOnError)
	fTail    = flagSet.Bool("tail", false, "whether to also log output to stderr")
	fConfig  = flagSet.String("config", "", "path to a .yaml, .toml or .json config file")
	fMerlin  = flagSet.String("merlin", "", "path to the ocamlmerlin binary")
	fTimeout = flagSet.Duration("timeout", 0, "per request timeout; 0 keeps the configured value")
)

func init() { flagSet.Usage = usage }

func usage() {
	fmt.Fprintf(os.Stderr, `
Usage of ocamlcreator:

	ocamlcreator [flags] errors [-watch] FILE...
	ocamlcreator [flags] complete FILE LINE:COL
	ocamlcreator [flags] locate FILE LINE:COL
	ocamlcreator [flags] occurrences FILE LINE:COL
	ocamlcreator [flags] quickfix FILE LINE:COL [N]
	ocamlcreator [flags] hover FILE LINE:COL

LINE is 1-based, COL is 0-based.

`[1:])
	flagSet.PrintDefaults()
}

type usageErr string

func (u usageErr) Error() string { return string(u) }

type flagErr string

func (f flagErr) Error() string { return string(f) }
