package modkit

// findSelfReference returns the first key, in sorted order, whose module is
// self.
func findSelfReference(modules map[string]Module, self Module) (string, bool) {
	if self == nil {
		return "", false
	}
	for _, key := range sortedKeys(modules) {
		if modules[key] == self {
			return key, true
		}
	}
	return "", false
}

// findCycle reports a ModuleCycleError when id already appears on chain.
func findCycle(chain []frame, id, key string) *ModuleCycleError {
	if id == "" {
		return nil
	}
	for _, f := range chain {
		if f.id != id {
			continue
		}
		path := make([]string, 0, len(chain)+1)
		for _, step := range chain {
			if step.key != "" {
				path = append(path, step.key)
			}
		}
		path = append(path, key)
		return &ModuleCycleError{Path: path, BuilderID: id}
	}
	return nil
}
