package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PlainPrompter asks questions as plain text lines. An empty line accepts
// the default. It needs no terminal, so it works over pipes.
type PlainPrompter struct {
	Reader *bufio.Reader
	Writer io.Writer
}

func NewPlainPrompter(r io.Reader, w io.Writer) *PlainPrompter {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &PlainPrompter{Reader: bufio.NewReader(r), Writer: w}
}

func (p *PlainPrompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.Writer, "> ")
	text, err := p.Reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && text != "" {
			return strings.TrimSpace(text), nil
		}
		if err == io.EOF {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *PlainPrompter) Input(ctx context.Context, cfg InputConfig) (string, error) {
	p.header(cfg.Message, cfg.Help)
	if cfg.Default != "" {
		fmt.Fprintf(p.Writer, "  [%s]\n", cfg.Default)
	}
	line, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if line == "" {
		return cfg.Default, nil
	}
	return line, nil
}

// TextArea reads lines until an empty one.
func (p *PlainPrompter) TextArea(ctx context.Context, cfg InputConfig) (string, error) {
	p.header(cfg.Message, "finish with an empty line")
	var lines []string
	for {
		line, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return cfg.Default, nil
	}
	return strings.Join(lines, "\n"), nil
}

func (p *PlainPrompter) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	hint := "y/N"
	if cfg.Default {
		hint = "Y/n"
	}
	p.header(fmt.Sprintf("%s (%s)", cfg.Message, hint), cfg.Help)
	for {
		line, err := p.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return cfg.Default, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.Writer, "Please answer y or n.")
	}
}

// Select accepts the 1-based number of an option or its exact text.
func (p *PlainPrompter) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	p.header(cfg.Message, cfg.Help)
	for i, o := range cfg.Options {
		marker := " "
		if i == cfg.DefaultIndex {
			marker = "*"
		}
		fmt.Fprintf(p.Writer, " %s %d) %s\n", marker, i+1, o)
	}
	for {
		line, err := p.readLine(ctx)
		if err != nil {
			return 0, err
		}
		if line == "" && cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
			return cfg.DefaultIndex, nil
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(cfg.Options) {
			return n - 1, nil
		}
		for i, o := range cfg.Options {
			if strings.EqualFold(o, line) {
				return i, nil
			}
		}
		fmt.Fprintf(p.Writer, "Please pick a number between 1 and %d.\n", len(cfg.Options))
	}
}

func (p *PlainPrompter) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.Writer, msg)
	return err
}

func (p *PlainPrompter) header(msg, help string) {
	fmt.Fprintln(p.Writer, msg)
	if help != "" {
		fmt.Fprintf(p.Writer, "  (%s)\n", help)
	}
}
