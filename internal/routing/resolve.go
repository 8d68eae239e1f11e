package routing

// Decision is a concrete route for one provider call.
type Decision struct {
	Provider    string
	Profile     string
	ModelID     string
	Temperature float64
	Source      Source
}

// Snapshot is an immutable view of the routing configuration. Callers must
// not mutate the policy or table after building a Snapshot.
type Snapshot struct {
	Policy    *Policy
	Overrides OverrideTable
}

// Resolve picks a route for task. The first applicable step wins:
// an admin override for the task, the multimodal provider when the input is
// multimodal, the policy's task mapping, its complexity mapping, and finally
// the policy default. A step naming a provider that is not configured is
// skipped. Resolve always returns a usable route; when nothing is
// configured it falls back to the built-in default.
func Resolve(snap Snapshot, task string, complexity Complexity, multimodal bool) Decision {
	policy := snap.Policy
	if policy == nil {
		policy = &Policy{}
	}

	if ov, ok := snap.Overrides.Tasks[task]; ok {
		if d, ok := decide(policy, ov.Provider, ov.Profile, SourceOverride); ok {
			if ov.Model != "" {
				d.ModelID = ov.Model
			}
			if ov.Temperature != nil {
				d.Temperature = *ov.Temperature
			}
			return d
		}
	}

	if multimodal && policy.MultimodalProvider != "" {
		if d, ok := decide(policy, policy.MultimodalProvider, "", SourceMultimodal); ok {
			return d
		}
	}

	if provider, ok := policy.Tasks[task]; ok {
		if d, ok := decide(policy, provider, "", SourceTask); ok {
			return d
		}
	}

	if complexity != "" {
		if provider, ok := policy.Complexity[string(complexity)]; ok {
			if d, ok := decide(policy, provider, "", SourceComplexity); ok {
				return d
			}
		}
	}

	if d, ok := decide(policy, policy.DefaultProvider, "", SourceDefault); ok {
		return d
	}

	return Decision{
		Provider:    BuiltinProvider,
		ModelID:     BuiltinModel,
		Temperature: BuiltinTemperature,
		Source:      SourceBuiltin,
	}
}

func decide(policy *Policy, provider, profile string, source Source) (Decision, bool) {
	provider = normalizeName(provider)
	entry, ok := policy.Providers[provider]
	if !ok {
		return Decision{}, false
	}
	name, p, ok := entry.profile(profile)
	if !ok {
		return Decision{}, false
	}
	return Decision{
		Provider:    provider,
		Profile:     name,
		ModelID:     p.Model,
		Temperature: p.Temperature,
		Source:      source,
	}, true
}
