/**
 * Availability Probe - capability check for the recognition engine and
 * language packs.
 *
 * Results are memoized per composite language string for the process
 * lifetime. Probe failures are never raised: (false, false) is a valid,
 * expected outcome that triggers fallback logic in the callers.
 */

package ocr

import "sync"

// Availability is the memoized boolean pair for one language configuration.
type Availability struct {
	Engine   bool
	Language bool
}

// Probe checks engine and language-pack availability through an injected
// Engine, so tests can substitute a fake. Safe for concurrent use.
type Probe struct {
	engine Engine

	mu            sync.Mutex
	cache         map[string]Availability
	engineChecked bool
	engineOK      bool
}

// NewProbe creates a probe backed by the given engine.
func NewProbe(engine Engine) *Probe {
	return &Probe{
		engine: engine,
		cache:  make(map[string]Availability),
	}
}

// Check reports whether the engine is installed and whether every component
// of lang has an installed language pack. Repeated calls with the same
// composite string are O(1) after the first.
func (p *Probe) Check(lang LanguageConfig) Availability {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[string(lang)]; ok {
		return cached
	}

	// Engine presence is established once per process.
	if !p.engineChecked {
		_, err := p.engine.Version()
		p.engineOK = err == nil
		p.engineChecked = true
	}

	avail := Availability{Engine: p.engineOK}
	if p.engineOK {
		avail.Language = p.languagesInstalled(lang)
	}

	p.cache[string(lang)] = avail
	return avail
}

// EngineInstalled reports engine presence without a language-pack query.
func (p *Probe) EngineInstalled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.engineChecked {
		_, err := p.engine.Version()
		p.engineOK = err == nil
		p.engineChecked = true
	}
	return p.engineOK
}

func (p *Probe) languagesInstalled(lang LanguageConfig) bool {
	components := lang.Components()
	if len(components) == 0 {
		return false
	}

	installed, err := p.engine.Languages()
	if err != nil {
		return false
	}

	available := make(map[string]bool, len(installed))
	for _, l := range installed {
		available[l] = true
	}

	for _, c := range components {
		if !available[c] {
			return false
		}
	}
	return true
}
