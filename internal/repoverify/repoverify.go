// Package repoverify checks a GitHub repository (or a whole account)
// against a list of required skills by reading languages, readmes and
// dependency manifests.
package repoverify

import (
	"context"
	"math"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/github"
	"github.com/pathwise/mri-engine/internal/logger"
	"github.com/pathwise/mri-engine/internal/skills"
)

// ownerRepoLimit bounds how many repositories an owner-only URL expands to.
const ownerRepoLimit = 8

// manifestProbes are the filenames fetched from each repository, in order.
// Readmes carry prose evidence; the manifests carry dependency names.
var manifestProbes = []string{
	"README.md",
	"readme.md",
	"package.json",
	"requirements.txt",
	"pyproject.toml",
	"go.mod",
	"Cargo.toml",
}

// Result reports which required skills a repository's contents support.
type Result struct {
	MatchedSkills     []string `json:"matched_skills"`
	Confidence        float64  `json:"confidence"`
	FilesChecked      []string `json:"files_checked"`
	ReposChecked      []string `json:"repos_checked"`
	LanguagesDetected []string `json:"languages_detected"`
}

// RepoReader is the slice of the code-hosting client the verifier needs.
// *github.Client satisfies it.
type RepoReader interface {
	Repos(ctx context.Context, owner string, limit int) ([]github.Repo, error)
	Languages(ctx context.Context, owner, repo string) ([]string, error)
	RawFile(ctx context.Context, owner, repo, path string) (string, error)
}

type Verifier struct {
	repos  RepoReader
	logger *zap.Logger
}

func NewVerifier(repos RepoReader, logger *zap.Logger) *Verifier {
	return &Verifier{repos: repos, logger: logger}
}

// Verify matches required skills against the repository at repoURL. An
// owner-only URL widens the check to the owner's most recently updated
// repositories. A URL that cannot be parsed returns an empty result and no
// error: unverifiable evidence is simply not evidence.
func (v *Verifier) Verify(ctx context.Context, repoURL string, required []string) (*Result, error) {
	result := &Result{
		MatchedSkills:     []string{},
		FilesChecked:      []string{},
		ReposChecked:      []string{},
		LanguagesDetected: []string{},
	}

	owner, repo, ok := ParseRepoURL(repoURL)
	if !ok {
		v.logger.Debug("unparseable repo url", zap.String("url", repoURL))
		return result, nil
	}

	targets := []string{repo}
	if repo == "" {
		repos, err := v.repos.Repos(ctx, owner, ownerRepoLimit)
		if err != nil {
			return nil, err
		}
		targets = targets[:0]
		for _, r := range repos {
			targets = append(targets, r.Name)
		}
	}

	var corpus strings.Builder
	seenLang := make(map[string]bool)
	for _, target := range targets {
		result.ReposChecked = append(result.ReposChecked, owner+"/"+target)

		langs, err := v.repos.Languages(ctx, owner, target)
		if err != nil {
			v.logger.Debug("languages unavailable",
				zap.String("repo", owner+"/"+target),
				zap.Error(err),
			)
		}
		for _, lang := range langs {
			corpus.WriteString(lang + "\n")
			if !seenLang[lang] {
				seenLang[lang] = true
				result.LanguagesDetected = append(result.LanguagesDetected, lang)
			}
		}

		for _, probe := range manifestProbes {
			content, err := v.repos.RawFile(ctx, owner, target, probe)
			if err != nil {
				continue
			}
			v.logger.Debug("manifest fetched",
				zap.String("file", target+"/"+probe),
				zap.String("preview", logger.TruncateForLog(content, 80)),
			)
			result.FilesChecked = append(result.FilesChecked, target+"/"+probe)
			corpus.WriteString(strings.ToLower(content) + "\n")
		}
	}

	haystack := corpus.String()
	for _, skill := range required {
		if matchSkill(haystack, skill) {
			result.MatchedSkills = append(result.MatchedSkills, skill)
		}
	}

	if len(required) > 0 {
		ratio := float64(len(result.MatchedSkills)) / float64(len(required))
		result.Confidence = math.Max(0, math.Min(100, ratio*100))
	}
	return result, nil
}

// matchSkill looks for the skill's canonical token or any of its aliases in
// the lowercased corpus.
func matchSkill(haystack, skill string) bool {
	for _, needle := range skills.AliasPool(skill) {
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// ParseRepoURL extracts the owner and optional repository name from a
// GitHub URL. The second value is empty for an owner-only URL; ok is false
// when the URL is not a usable GitHub reference.
func ParseRepoURL(repoURL string) (owner, repo string, ok bool) {
	parsed, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil || parsed.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(parsed.Host)
	if host != "github.com" && host != "www.github.com" {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", "", false
	}

	owner = parts[0]
	if len(parts) > 1 {
		repo = strings.TrimSuffix(parts[1], ".git")
	}
	return owner, repo, true
}
