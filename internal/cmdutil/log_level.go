// Package cmdutil holds small helpers shared by commands.
package cmdutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-kit/log/level"
)

// logLevels maps the names accepted on the command line to go-kit filter
// options.
var logLevels = map[string]level.Option{
	"debug": level.AllowDebug(),
	"info":  level.AllowInfo(),
	"warn":  level.AllowWarn(),
	"error": level.AllowError(),
}

// LogLevel is a flag.Value selecting the minimum level a logger emits. The
// zero value filters at info.
type LogLevel struct {
	name string
}

// String implements flag.Value.
func (l LogLevel) String() string {
	if l.name == "" {
		return "info"
	}
	return l.name
}

// Set implements flag.Value.
func (l *LogLevel) Set(in string) error {
	name := strings.ToLower(in)
	if _, ok := logLevels[name]; !ok {
		return fmt.Errorf("unknown log level %q, valid levels: %s", in, strings.Join(levelNames(), ", "))
	}
	l.name = name
	return nil
}

// FilterOption returns the selected level as an option for level.NewFilter.
func (l LogLevel) FilterOption() level.Option {
	if opt, ok := logLevels[l.name]; ok {
		return opt
	}
	return logLevels["info"]
}

func levelNames() []string {
	names := make([]string, 0, len(logLevels))
	for name := range logLevels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
