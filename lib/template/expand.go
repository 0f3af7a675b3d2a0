// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cohortgrid/containerboot/lib/secret"
)

// ErrUnresolved reports that a template referenced variables that have
// no value in the substitution context. Fatal: a structurally valid
// configuration with silently-empty values is worse than a halt.
var ErrUnresolved = errors.New("unresolved template variables")

// referencePattern matches ${NAME} references. Only the braced form
// is recognized — bare $NAME passes through untouched, so values that
// the application process expands itself (shell snippets in the
// config) are not mangled. Names start with a letter or underscore
// and contain only letters, digits, and underscores.
var referencePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces every ${NAME} reference in input with its value from
// context. If any referenced name has no value, the whole expansion
// fails with an error wrapping [ErrUnresolved] that lists every
// missing name, so the operator can fix them all in one pass.
//
// Expansion is a single pass over the input: values are substituted
// verbatim and are not themselves re-expanded. Identical input and
// context therefore always produce identical output.
func Expand(input string, context map[string]string) (string, error) {
	missing := map[string]bool{}

	result := referencePattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := context[name]; ok {
			return value
		}
		missing[name] = true
		return match
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(names, ", "))
	}
	return result, nil
}

// fileSuffix marks environment variables whose value is a path to a
// mounted secret file rather than the value itself.
const fileSuffix = "_FILE"

// BuildContext builds the substitution context from the process
// environment. Every variable `<prefix>NAME=value` contributes
// NAME=value. Every variable `<prefix>NAME_FILE=path` contributes
// NAME=<trimmed contents of path>, which is how mounted secrets reach
// templates without their values ever appearing in the environment.
//
// Supplying both forms for the same name is an error: picking one
// silently would hide an operator mistake.
func BuildContext(environ []string, prefix string) (map[string]string, error) {
	context := map[string]string{}
	fromFile := map[string]bool{}

	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		name = strings.TrimPrefix(name, prefix)
		if name == "" {
			continue
		}

		if base, isFile := strings.CutSuffix(name, fileSuffix); isFile && base != "" {
			if _, exists := context[base]; exists && !fromFile[base] {
				return nil, fmt.Errorf("both %s%s and %s%s%s are set; use one", prefix, base, prefix, base, fileSuffix)
			}
			secretValue, err := secret.ReadFromPath(value)
			if err != nil {
				return nil, fmt.Errorf("%s%s: %w", prefix, name, err)
			}
			context[base] = secretValue
			fromFile[base] = true
			continue
		}

		if fromFile[name] {
			return nil, fmt.Errorf("both %s%s and %s%s%s are set; use one", prefix, name, prefix, name, fileSuffix)
		}
		context[name] = value
	}

	return context, nil
}
