package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadCommand = errors.New("bad command")

// Command is one line typed into the browser, translated to a tool call.
type Command struct {
	Quit bool
	Tool string
	Args string
}

var toolAliases = map[string]string{
	"history":          "history",
	"h":                "history",
	"expand":           "expand",
	"e":                "expand",
	"collapse":         "collapse",
	"c":                "collapse",
	"only":             "collapse_all_but",
	"collapse_all_but": "collapse_all_but",
	"search":           "search",
	"s":                "search",
	"now":              "now",
	"answer":           "answer",
}

// ParseCommand reads a browser line.
//
//	expand @0/1 2 4        expand children 2..4 of node [0, 1]
//	collapse 2024-01-02    collapse the children touching that date
//	search! @1 red cup     close-match search below node [1]
//	history @0 outline     show node [0] as an outline
//	expand {"filter": 0}   raw JSON arguments
//
// A leading @path addresses a node by child indices separated by slashes.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrBadCommand)
	}

	verb, closeMatch := strings.CutSuffix(fields[0], "!")
	if verb == "q" || verb == "quit" || verb == "exit" {
		return Command{Quit: true}, nil
	}
	tool, ok := toolAliases[verb]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrBadCommand, verb)
	}
	if closeMatch && tool != "search" {
		return Command{}, fmt.Errorf("%w: only search takes !", ErrBadCommand)
	}

	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	if strings.HasPrefix(rest, "{") {
		if !json.Valid([]byte(rest)) {
			return Command{}, fmt.Errorf("%w: invalid JSON arguments", ErrBadCommand)
		}
		return Command{Tool: tool, Args: rest}, nil
	}

	args := map[string]any{}
	words := fields[1:]
	if len(words) > 0 && strings.HasPrefix(words[0], "@") {
		path, err := parsePath(words[0][1:])
		if err != nil {
			return Command{}, err
		}
		args["path"] = path
		words = words[1:]
	}

	switch tool {
	case "history":
		if len(words) > 1 {
			return Command{}, fmt.Errorf("%w: history takes at most a style", ErrBadCommand)
		}
		if len(words) == 1 {
			args["style"] = words[0]
		}
	case "expand", "collapse", "collapse_all_but":
		switch len(words) {
		case 0:
		case 1:
			args["filter"] = filterValue(words[0])
		case 2:
			args["filter"] = []any{filterValue(words[0]), filterValue(words[1])}
		default:
			return Command{}, fmt.Errorf("%w: a filter has at most two bounds", ErrBadCommand)
		}
	case "search":
		if len(words) == 0 {
			return Command{}, fmt.Errorf("%w: search needs a query", ErrBadCommand)
		}
		args["query"] = strings.Join(words, " ")
		if closeMatch {
			args["close_match"] = true
		}
	case "answer":
		args["answer"] = strings.Join(words, " ")
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return Command{}, err
	}
	return Command{Tool: tool, Args: string(raw)}, nil
}

func parsePath(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, "/")
	path := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: path element %q is not an index", ErrBadCommand, p)
		}
		path[i] = n
	}
	return path, nil
}

func filterValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
