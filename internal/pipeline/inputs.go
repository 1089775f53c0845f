package pipeline

import (
	"fmt"

	"geosql/internal/config"
	"geosql/internal/datasource/file"
)

// JoinInputs lists the files of the join stage: a single file, the entries
// of a list file, or the matches of Dir+Pattern, in that order of
// precedence.
func JoinInputs(in config.Input) ([]string, error) {
	switch {
	case in.File != "":
		return []string{in.File}, nil
	case in.List != "":
		paths, err := file.ReadList(in.List)
		if err != nil {
			return nil, configError(fmt.Errorf("input list: %w", err))
		}
		return paths, nil
	default:
		paths, err := file.Resolve(in.Dir, in.Pattern)
		if err != nil {
			return nil, configError(err)
		}
		return paths, nil
	}
}

// EmitInputs lists the augmented files found in the emission input
// directory.
func EmitInputs(p config.Pipeline) ([]string, error) {
	paths, err := file.Resolve(p.EmitInputDir(), p.Emit.Pattern)
	if err != nil {
		return nil, configError(err)
	}
	return paths, nil
}

// Outputs returns the outputs of the successful reports, in order.
func Outputs(reports []Report) []string {
	var out []string
	for _, r := range reports {
		if !r.Failed() && r.Output != "" {
			out = append(out, r.Output)
		}
	}
	return out
}
