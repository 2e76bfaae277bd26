package runner

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/registry"
)

const (
	skipOption  = "(skip)"
	otherOption = "Other..."
)

// ask prompts for one answerable field. current is the recorded answer.
// A nil result with ok=false leaves the answer untouched.
func (r *Runner) ask(ctx context.Context, f domain.FieldDefinition, current any, fieldErr string) (any, bool, error) {
	label := f.DisplayName()
	if f.Required {
		label += " *"
	}
	help := fieldErr

	switch f.Type {
	case domain.FieldLongText:
		s, err := r.prompter.TextArea(ctx, InputConfig{Message: label, Default: str(current), Help: help})
		return s, err == nil, err

	case domain.FieldMultipleChoice, domain.FieldDropdown:
		return r.askChoice(ctx, f, label, str(current), help)

	case domain.FieldYesNo:
		opts := []string{"Yes", "No"}
		def := -1
		switch str(current) {
		case registry.YesToken:
			def = 0
		case registry.NoToken:
			def = 1
		}
		if !f.Required {
			opts = append(opts, skipOption)
		}
		i, err := r.prompter.Select(ctx, SelectConfig{Message: label, Options: opts, DefaultIndex: def, Help: help})
		if err != nil {
			return nil, false, err
		}
		switch i {
		case 0:
			return registry.YesToken, true, nil
		case 1:
			return registry.NoToken, true, nil
		}
		return "", true, nil

	case domain.FieldNumberRating, domain.FieldOpinionScale:
		lo, hi := registry.RatingBounds(f)
		var opts []string
		def := -1
		cur, hasCur := registry.AsInt(current)
		for n := lo; n <= hi; n++ {
			if hasCur && n == cur {
				def = len(opts)
			}
			opts = append(opts, strconv.Itoa(n))
		}
		if !f.Required {
			opts = append(opts, skipOption)
		}
		i, err := r.prompter.Select(ctx, SelectConfig{Message: label, Options: opts, DefaultIndex: def, Help: help})
		if err != nil {
			return nil, false, err
		}
		if opts[i] == skipOption {
			return nil, true, nil
		}
		return lo + i, true, nil

	case domain.FieldLegal:
		b, _ := current.(bool)
		ok, err := r.prompter.Confirm(ctx, ConfirmConfig{Message: "I accept " + f.DisplayName(), Default: b, Help: help})
		return ok, err == nil, err

	case domain.FieldFileUpload:
		raw, err := r.prompter.Input(ctx, InputConfig{Message: label, Help: joinHelp(help, "comma-separated file paths")})
		if err != nil {
			return nil, false, err
		}
		if strings.TrimSpace(raw) == "" {
			return current, true, nil
		}
		files, err := statFiles(raw)
		if err != nil {
			_ = r.prompter.Info(ctx, err.Error())
			return nil, false, nil
		}
		return files, true, nil

	default:
		s, err := r.prompter.Input(ctx, InputConfig{Message: label, Default: str(current), Help: help})
		return s, err == nil, err
	}
}

func (r *Runner) askChoice(ctx context.Context, f domain.FieldDefinition, label, current, help string) (any, bool, error) {
	options := f.Constraints.Options
	if len(options) == 0 {
		s, err := r.prompter.Input(ctx, InputConfig{Message: label, Default: current, Help: help})
		return s, err == nil, err
	}

	opts := append(append([]string(nil), options...), otherOption)
	if !f.Required {
		opts = append(opts, skipOption)
	}
	def := -1
	for i, o := range options {
		if o == current {
			def = i
		}
	}
	if registry.IsOtherAnswer(current) {
		def = len(options)
	}

	i, err := r.prompter.Select(ctx, SelectConfig{Message: label, Options: opts, DefaultIndex: def, Help: help})
	if err != nil {
		return nil, false, err
	}
	switch opts[i] {
	case skipOption:
		return "", true, nil
	case otherOption:
		text, err := r.prompter.Input(ctx, InputConfig{Message: "Please specify", Default: registry.OtherText(current)})
		if err != nil {
			return nil, false, err
		}
		return registry.OtherPrefix + text, true, nil
	}
	return opts[i], true, nil
}

// statFiles turns local paths into file answers. Content is never read.
func statFiles(raw string) ([]domain.FileAnswer, error) {
	var files []domain.FileAnswer
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot attach %q: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("cannot attach %q: is a directory", p)
		}
		files = append(files, domain.FileAnswer{
			Name:     filepath.Base(p),
			MimeType: mime.TypeByExtension(filepath.Ext(p)),
			Size:     info.Size(),
		})
	}
	return files, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func joinHelp(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}
