package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"govee-decoder/pkg/govee"
)

type result struct {
	Payload string         `json:"payload"`
	Model   string         `json:"model,omitempty"`
	Reading *govee.Reading `json:"reading,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run decodes every payload given as an argument, or one per stdin line when
// there are none. It returns 1 if any payload failed.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("govee-decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "", "decode with this model instead of detecting it (H5074, H5075, H5101, H5179)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: govee-decode [-model NAME] [HEX...]\n  reads one payload per line from stdin when no HEX is given\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	name := strings.ToUpper(strings.TrimSpace(*model))
	if name != "" {
		if _, ok := govee.Lookup(name); !ok {
			fmt.Fprintf(stderr, "unknown model: %s\n", name)
			return 2
		}
	}

	enc := json.NewEncoder(stdout)
	failed := false
	decodeOne := func(payload string) {
		res := decode(name, payload)
		if res.Error != "" {
			failed = true
		}
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "write: %v\n", err)
			failed = true
		}
	}

	if fs.NArg() > 0 {
		for _, p := range fs.Args() {
			decodeOne(strings.TrimSpace(p))
		}
	} else {
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			decodeOne(line)
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintf(stderr, "read stdin: %v\n", err)
			return 1
		}
	}

	if failed {
		return 1
	}
	return 0
}

func decode(model, payload string) result {
	res := result{Payload: payload}

	var (
		reading govee.Reading
		err     error
	)
	if model != "" {
		res.Model = model
		reading, err = govee.DecodeForModel(model, payload)
	} else {
		res.Model, _ = govee.Detect(payload)
		reading, err = govee.DecodeAny(payload)
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Reading = &reading
	return res
}
