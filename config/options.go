package config

import "reflect"

// Options is the fully resolved set of style knobs handed to an oracle.
// Every field holds a concrete value; see Resolve.
type Options struct {
	IndentSize                         int    `json:"indentSize" msgpack:"indent_size"`
	TabSize                            int    `json:"tabSize" msgpack:"tab_size"`
	Newline                            string `json:"newline" msgpack:"newline"`
	ConvertTabsToSpaces                bool   `json:"convertTabsToSpaces" msgpack:"convert_tabs_to_spaces"`
	SpaceAfterComma                    bool   `json:"spaceAfterComma" msgpack:"space_after_comma"`
	SpaceAfterSemicolonInFor           bool   `json:"spaceAfterSemicolonInFor" msgpack:"space_after_semicolon_in_for"`
	SpaceAroundBinaryOperators         bool   `json:"spaceAroundBinaryOperators" msgpack:"space_around_binary_operators"`
	SpaceAfterControlFlowKeywords      bool   `json:"spaceAfterControlFlowKeywords" msgpack:"space_after_control_flow_keywords"`
	SpaceAfterAnonymousFunctionKeyword bool   `json:"spaceAfterAnonymousFunctionKeyword" msgpack:"space_after_anonymous_function_keyword"`
	SpaceInsideNonEmptyParens          bool   `json:"spaceInsideNonEmptyParens" msgpack:"space_inside_non_empty_parens"`
	BraceOnNewLineForFunctions         bool   `json:"braceOnNewLineForFunctions" msgpack:"brace_on_new_line_for_functions"`
	BraceOnNewLineForControlBlocks     bool   `json:"braceOnNewLineForControlBlocks" msgpack:"brace_on_new_line_for_control_blocks"`

	Target Target `json:"target" msgpack:"target"`
}

// PartialOptions mirrors Options with pointer fields, a nil field meaning the caller did not supply it.
// Keys outside this set are dropped when decoding.
type PartialOptions struct {
	IndentSize                         *int    `mapstructure:"indent-size" toml:"indent-size,omitempty"`
	TabSize                            *int    `mapstructure:"tab-size" toml:"tab-size,omitempty"`
	Newline                            *string `mapstructure:"newline" toml:"newline,omitempty"`
	ConvertTabsToSpaces                *bool   `mapstructure:"convert-tabs-to-spaces" toml:"convert-tabs-to-spaces,omitempty"`
	SpaceAfterComma                    *bool   `mapstructure:"space-after-comma" toml:"space-after-comma,omitempty"`
	SpaceAfterSemicolonInFor           *bool   `mapstructure:"space-after-semicolon-in-for" toml:"space-after-semicolon-in-for,omitempty"`
	SpaceAroundBinaryOperators         *bool   `mapstructure:"space-around-binary-operators" toml:"space-around-binary-operators,omitempty"`
	SpaceAfterControlFlowKeywords      *bool   `mapstructure:"space-after-control-flow-keywords" toml:"space-after-control-flow-keywords,omitempty"`
	SpaceAfterAnonymousFunctionKeyword *bool   `mapstructure:"space-after-anonymous-function-keyword" toml:"space-after-anonymous-function-keyword,omitempty"`
	SpaceInsideNonEmptyParens          *bool   `mapstructure:"space-inside-non-empty-parens" toml:"space-inside-non-empty-parens,omitempty"`
	BraceOnNewLineForFunctions         *bool   `mapstructure:"brace-on-new-line-for-functions" toml:"brace-on-new-line-for-functions,omitempty"`
	BraceOnNewLineForControlBlocks     *bool   `mapstructure:"brace-on-new-line-for-control-blocks" toml:"brace-on-new-line-for-control-blocks,omitempty"`
}

// OptionKeys returns the config keys of every option knob, as used in the [options] table.
func OptionKeys() []string {
	t := reflect.TypeOf(PartialOptions{})
	keys := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, t.Field(i).Tag.Get("mapstructure"))
	}

	return keys
}

// DefaultTarget is used when no target has been configured.
const DefaultTarget = ES5

// Defaults returns the compiled-in option values.
func Defaults() Options {
	return Options{
		IndentSize:                         4,
		TabSize:                            4,
		Newline:                            "\r\n",
		ConvertTabsToSpaces:                true,
		SpaceAfterComma:                    true,
		SpaceAfterSemicolonInFor:           true,
		SpaceAroundBinaryOperators:         true,
		SpaceAfterControlFlowKeywords:      true,
		SpaceAfterAnonymousFunctionKeyword: false,
		SpaceInsideNonEmptyParens:          false,
		BraceOnNewLineForFunctions:         false,
		BraceOnNewLineForControlBlocks:     false,
		Target:                             DefaultTarget,
	}
}

// Resolve merges partial over Defaults, field by field.
// The Target is left at its default; it is resolved separately with ResolveTarget.
func Resolve(partial *PartialOptions) Options {
	opts := Defaults()
	if partial == nil {
		return opts
	}

	pick(&opts.IndentSize, partial.IndentSize)
	pick(&opts.TabSize, partial.TabSize)
	pick(&opts.Newline, partial.Newline)
	pick(&opts.ConvertTabsToSpaces, partial.ConvertTabsToSpaces)
	pick(&opts.SpaceAfterComma, partial.SpaceAfterComma)
	pick(&opts.SpaceAfterSemicolonInFor, partial.SpaceAfterSemicolonInFor)
	pick(&opts.SpaceAroundBinaryOperators, partial.SpaceAroundBinaryOperators)
	pick(&opts.SpaceAfterControlFlowKeywords, partial.SpaceAfterControlFlowKeywords)
	pick(&opts.SpaceAfterAnonymousFunctionKeyword, partial.SpaceAfterAnonymousFunctionKeyword)
	pick(&opts.SpaceInsideNonEmptyParens, partial.SpaceInsideNonEmptyParens)
	pick(&opts.BraceOnNewLineForFunctions, partial.BraceOnNewLineForFunctions)
	pick(&opts.BraceOnNewLineForControlBlocks, partial.BraceOnNewLineForControlBlocks)

	return opts
}

func pick[T any](dst *T, supplied *T) {
	if supplied != nil {
		*dst = *supplied
	}
}

// Params is what a pipeline stage is constructed from. A nil *Params is valid and means "all defaults".
type Params struct {
	Options *PartialOptions `mapstructure:"options" toml:"options,omitempty"`
	Target  string          `mapstructure:"target" toml:"target,omitempty"`
}

// Resolve produces the immutable Options for a stage, failing with an *InvalidTargetError when the target is
// not recognised.
func (p *Params) Resolve() (*Options, error) {
	if p == nil {
		opts := Defaults()

		return &opts, nil
	}

	opts := Resolve(p.Options)

	if p.Target != "" {
		target, err := ResolveTarget(p.Target)
		if err != nil {
			return nil, err
		}

		opts.Target = target
	}

	return &opts, nil
}
