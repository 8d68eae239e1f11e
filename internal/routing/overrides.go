package routing

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// OverrideEntry pins a task to a provider. Empty fields fall through to the
// provider's defaults.
type OverrideEntry struct {
	Provider    string   `mapstructure:"provider"`
	Profile     string   `mapstructure:"profile"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
}

// OverrideTable holds the admin overrides keyed by task name.
type OverrideTable struct {
	Tasks map[string]OverrideEntry `mapstructure:"tasks"`
}

// DecodeOverrides turns the free-form admin settings document into an
// OverrideTable. It accepts either {"tasks": {...}} or the task map itself,
// and a task value may be a bare provider name.
func DecodeOverrides(raw map[string]any) (OverrideTable, error) {
	table := OverrideTable{Tasks: map[string]OverrideEntry{}}
	if len(raw) == 0 {
		return table, nil
	}

	tasks := raw
	if nested, ok := raw["tasks"]; ok {
		m, ok := nested.(map[string]any)
		if !ok {
			return table, fmt.Errorf("routing overrides: tasks must be an object, got %T", nested)
		}
		tasks = m
	}

	for task, value := range tasks {
		var entry OverrideEntry
		switch v := value.(type) {
		case string:
			entry.Provider = v
		case map[string]any:
			if err := decodeSettings(v, &entry); err != nil {
				return table, fmt.Errorf("routing overrides: task %q: %w", task, err)
			}
		default:
			return table, fmt.Errorf("routing overrides: task %q has unsupported value %T", task, value)
		}
		entry.Provider = normalizeName(entry.Provider)
		if entry.Provider == "" {
			continue
		}
		table.Tasks[strings.TrimSpace(task)] = entry
	}
	return table, nil
}

// decodeSettings decodes a settings map with weak typing and key matching
// that ignores case, '_' and '-'.
func decodeSettings(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return settingsKey(mapKey) == settingsKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func settingsKey(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}
