// Package bank loads the static question bank and hands out random samples
// for quiz sessions.
package bank

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"physics-practice/internal/models"
)

// Bank holds every question from the data directory in memory. The bank is
// read-only after Load, so it is safe for concurrent readers.
type Bank struct {
	questions []models.Question
}

// New builds a bank from an in-memory question list. Used by tests and when
// merging AI-generated questions into a session.
func New(questions []models.Question) *Bank {
	return &Bank{questions: questions}
}

// Load reads every *.json file under dir. Each file is a JSON array of
// questions, typically one file per unit.
func Load(dir string) (*Bank, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var all []models.Question
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read question file %s: %w", path, err)
		}
		var questions []models.Question
		if err := json.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("parse question file %s: %w", path, err)
		}
		all = append(all, questions...)
		log.Printf("Loaded %d questions from %s", len(questions), filepath.Base(path))
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no question files found in %s", dir)
	}
	return &Bank{questions: all}, nil
}

// Units returns the distinct unit names in sorted order.
func (b *Bank) Units() []string {
	seen := make(map[string]bool)
	var units []string
	for _, q := range b.questions {
		if !seen[q.Unit] {
			seen[q.Unit] = true
			units = append(units, q.Unit)
		}
	}
	sort.Strings(units)
	return units
}

// Topics returns the distinct topics of a unit in bank order.
func (b *Bank) Topics(unit string) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, q := range b.questions {
		if q.Unit != unit {
			continue
		}
		if !seen[q.Topic] {
			seen[q.Topic] = true
			topics = append(topics, q.Topic)
		}
	}
	return topics
}

// Sample draws up to n questions from a unit, random without replacement.
// An empty topic filter means all topics. When fewer than n questions
// match, every match is returned; never an error, never padding.
func (b *Bank) Sample(unit string, n int, topics []string) []models.Question {
	filter := make(map[string]bool, len(topics))
	for _, t := range topics {
		filter[t] = true
	}

	var pool []models.Question
	for _, q := range b.questions {
		if unit != "" && q.Unit != unit {
			continue
		}
		if len(filter) > 0 && !filter[q.Topic] {
			continue
		}
		pool = append(pool, q)
	}

	return drawWithoutReplacement(pool, n)
}

// SampleByTopics draws up to n questions across all units whose topic is in
// the given list. Used for weak-topic remediation quizzes.
func (b *Bank) SampleByTopics(topics []string, n int) []models.Question {
	return b.Sample("", n, topics)
}

func drawWithoutReplacement(pool []models.Question, n int) []models.Question {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}

	picked := make([]models.Question, 0, n)
	for _, i := range rand.Perm(len(pool))[:n] {
		picked = append(picked, pool[i])
	}
	return picked
}
