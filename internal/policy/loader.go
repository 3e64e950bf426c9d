package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gatewright/gatewright/internal/errors"
	"github.com/gatewright/gatewright/internal/hosting"
	"github.com/gatewright/gatewright/internal/rule"
)

// DefaultCacheTTL bounds how long a parsed document is reused for the same
// (repo, sha). Content at a fixed sha is immutable, so the TTL only bounds
// memory, not staleness.
const DefaultCacheTTL = time.Hour

// Loader fetches and caches policy and rule documents by (repo, sha).
type Loader struct {
	forge hosting.Provider
	log   *slog.Logger
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	doc     *Document
	rule    *rule.Document
	addedAt time.Time
}

// NewLoader creates a Loader backed by the given forge client.
func NewLoader(forge hosting.Provider, log *slog.Logger) *Loader {
	return &Loader{
		forge: forge,
		log:   log,
		ttl:   DefaultCacheTTL,
		cache: make(map[string]cacheEntry),
	}
}

// Load fetches and parses the policy document at the given head commit.
// Errors carry one of three codes: POLICY_MISSING for a 404,
// POLICY_INVALID for parse/validation failures, POLICY_TRANSIENT for
// anything else.
func (l *Loader) Load(ctx context.Context, sha string) (*Document, error) {
	key := l.forge.FullName() + "@" + sha

	l.mu.Lock()
	if e, ok := l.cache[key]; ok && time.Since(e.addedAt) < l.ttl {
		l.mu.Unlock()
		return e.doc, nil
	}
	l.mu.Unlock()

	data, err := l.forge.GetContent(ctx, SpecPath, sha)
	if err != nil {
		if stderrors.Is(err, hosting.ErrNotFound) {
			return nil, errors.New(errors.CodePolicyMissing, "no policy file found").
				WithWhy(SpecPath+" does not exist at "+sha).
				WithFix("add " + SpecPath + " to the repository")
		}
		return nil, errors.New(errors.CodePolicyTransient, "could not fetch policy file").
			WithWhy("the forge API call failed").
			WithFix("retry the check once the forge is reachable").
			WithCause(err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, errors.New(errors.CodePolicyInvalid, "invalid policy file").
			WithWhy(err.Error()).
			WithFix("fix " + SpecPath + " to match the policy schema")
	}

	sum := sha256.Sum256(data)
	doc.Hash = hex.EncodeToString(sum[:8])

	l.mu.Lock()
	l.cache[key] = cacheEntry{doc: doc, addedAt: time.Now()}
	l.mu.Unlock()

	l.log.Debug("policy loaded", "repo", l.forge.FullName(), "sha", sha, "gates", len(doc.Gates))
	return doc, nil
}

// LoadRule fetches and validates a rule document from the policy rules
// directory at the given head commit.
func (l *Loader) LoadRule(ctx context.Context, sha, name string) (*rule.Document, error) {
	path := RulesDir + "/" + name
	key := l.forge.FullName() + "@" + sha + "#" + path

	l.mu.Lock()
	if e, ok := l.cache[key]; ok && time.Since(e.addedAt) < l.ttl {
		l.mu.Unlock()
		return e.rule, nil
	}
	l.mu.Unlock()

	data, err := l.forge.GetContent(ctx, path, sha)
	if err != nil {
		if stderrors.Is(err, hosting.ErrNotFound) {
			return nil, errors.New(errors.CodeRuleMissing, "rule file not found").
				WithWhy(path + " does not exist at " + sha)
		}
		return nil, errors.New(errors.CodePolicyTransient, "could not fetch rule file").WithCause(err)
	}

	doc, err := rule.Parse(data)
	if err != nil {
		return nil, errors.New(errors.CodeRuleSchemaInvalid, "invalid rule file").
			WithWhy(err.Error()).
			WithFix("fix " + path + " to match the rule schema")
	}

	l.mu.Lock()
	l.cache[key] = cacheEntry{rule: doc, addedAt: time.Now()}
	l.mu.Unlock()

	return doc, nil
}

// Evict drops all cached entries for a head commit. Called when the head
// moves so abandoned shas do not pin memory for a full TTL.
func (l *Loader) Evict(sha string) {
	prefix := l.forge.FullName() + "@" + sha
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.cache {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(l.cache, k)
		}
	}
}
