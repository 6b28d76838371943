// Package synth implements the speech engines and the synthesis orchestrator
// that drives them with caching, bounded retries and fallback.
package synth

import (
	"fmt"

	"github.com/book-expert/document-speech-service/internal/core"
)

// EngineTable maps (language, mode) to a primary engine and an optional
// fallback. In the network-preferred mode the network engine leads and the
// local engine backs it up; in the local-only mode the local engine runs
// alone and there is no fallback.
type EngineTable struct {
	network map[core.Language]core.SpeechEngine
	local   map[core.Language]core.SpeechEngine
}

// NewEngineTable creates a table. Every supported language must have both a
// network and a local engine registered.
func NewEngineTable() *EngineTable {
	return &EngineTable{
		network: make(map[core.Language]core.SpeechEngine),
		local:   make(map[core.Language]core.SpeechEngine),
	}
}

// RegisterNetwork binds a network engine to a language.
func (t *EngineTable) RegisterNetwork(language core.Language, engine core.SpeechEngine) {
	t.network[language] = engine
}

// RegisterLocal binds a local engine to a language.
func (t *EngineTable) RegisterLocal(language core.Language, engine core.SpeechEngine) {
	t.local[language] = engine
}

// Select returns the primary and fallback engines for a request. The fallback
// is nil when the mode admits none.
func (t *EngineTable) Select(
	language core.Language,
	mode core.Mode,
) (primary, fallback core.SpeechEngine, err error) {
	networkEngine, haveNetwork := t.network[language]
	localEngine, haveLocal := t.local[language]

	switch mode {
	case core.ModeNetworkPreferred:
		if !haveNetwork || !haveLocal {
			return nil, nil, fmt.Errorf(
				"%w: no engines registered for language '%s'",
				core.ErrSynthesisFailed, language)
		}

		return networkEngine, localEngine, nil
	case core.ModeLocalOnly:
		if !haveLocal {
			return nil, nil, fmt.Errorf(
				"%w: no local engine registered for language '%s'",
				core.ErrSynthesisFailed, language)
		}

		return localEngine, nil, nil
	default:
		return nil, nil, fmt.Errorf(
			"%w: unknown synthesis mode '%s'",
			core.ErrSynthesisFailed, mode)
	}
}
