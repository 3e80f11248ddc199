// Command msgcheck checks chat message, search info and transcript JSON
// documents and prints every problem it finds.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/transcript"
)

var errInvalid = errors.New("one or more documents are invalid")

type decodeFunc func([]byte) (any, error)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	command := func(name, usage string, decode decodeFunc) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "[FILE...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "normalize",
					Aliases: []string{"n"},
					Usage:   "print valid documents re-encoded",
				},
			},
			Action: func(c *cli.Context) error {
				return check(c, decode)
			},
		}
	}

	return &cli.App{
		Name:  "msgcheck",
		Usage: "validate chat documents",
		Commands: []*cli.Command{
			command("message", "check Message documents", func(b []byte) (any, error) { return model.DecodeMessage(b) }),
			command("search-info", "check SearchInfo documents", func(b []byte) (any, error) { return model.DecodeSearchInfo(b) }),
			command("transcript", "check transcripts (arrays of messages)", func(b []byte) (any, error) { return transcript.Decode(b) }),
		},
		// Errors are reported by main; the default handler would exit the process.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// check runs decode over every file argument, or stdin when there are none.
func check(c *cli.Context, decode decodeFunc) error {
	out := c.App.Writer
	names := c.Args().Slice()
	if len(names) == 0 {
		names = []string{"-"}
	}

	failed := false
	for _, name := range names {
		data, err := readInput(c.App.Reader, name)
		if err != nil {
			return err
		}

		doc, err := decode(data)
		if err != nil {
			failed = true
			report(out, name, err)
			continue
		}

		if !c.Bool("normalize") {
			fmt.Fprintf(out, "%s: ok\n", name)
			continue
		}
		normalized, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(out, "%s\n", normalized)
	}

	if failed {
		return errInvalid
	}
	return nil
}

func report(out io.Writer, name string, err error) {
	fmt.Fprintf(out, "%s: invalid\n", name)
	var schemaErr *model.SchemaError
	if errors.As(err, &schemaErr) {
		for _, p := range schemaErr.Problems {
			fmt.Fprintf(out, "  %s: %s\n", p.Path, p.Problem)
		}
		return
	}
	fmt.Fprintf(out, "  %s\n", err)
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", name, err)
	}
	return data, nil
}
