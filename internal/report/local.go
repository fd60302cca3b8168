// Package report turns a finished quiz into a human-readable analysis,
// either locally or via the LLM with automatic fallback.
package report

import (
	"fmt"
	"sort"
	"strings"

	"physics-practice/internal/models"
)

// Local builds the deterministic analysis report. No randomness and no
// external calls: identical answers and unit always produce identical text.
func Local(answers []models.AnsweredQuestion, unitName string) string {
	correct := 0
	totalTime := 0.0
	for _, a := range answers {
		if a.Correct {
			correct++
		}
		totalTime += a.TimeSpent
	}
	total := len(answers)

	avgTime := 0.0
	percent := 0
	if total > 0 {
		avgTime = totalTime / float64(total)
		percent = 100 * correct / total
	}

	var wrong []models.AnsweredQuestion
	for _, a := range answers {
		if !a.Correct {
			wrong = append(wrong, a)
		}
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# 📊 Quiz Analysis Report for %s\n\n", unitName)
	b.WriteString("## 🎯 Score Summary\n")
	fmt.Fprintf(&b, "- **Score:** %d/%d (%d%%)\n", correct, total, percent)
	fmt.Fprintf(&b, "- **Total Time:** %.1fs\n", totalTime)
	fmt.Fprintf(&b, "- **Average Time per Question:** %.1fs\n\n", avgTime)

	b.WriteString("## ⏱️ Time Analysis\n\n")
	slow := slowQuestions(answers, avgTime)
	if len(slow) > 0 {
		b.WriteString("### Questions that took longer than average:\n")
		for _, i := range slow {
			a := answers[i]
			fmt.Fprintf(&b, "- Q%d: %s... (%.1fs)\n", i+1, clip(a.Question, 50), a.TimeSpent)
		}
	} else {
		b.WriteString("Great job managing your time well!\n")
	}
	b.WriteString("\n")

	if len(wrong) > 0 {
		fmt.Fprintf(&b, "## ❌ Wrong Answers Analysis (%d questions)\n\n", len(wrong))
		for i, a := range wrong {
			fmt.Fprintf(&b, "### Question %d\n", i+1)
			fmt.Fprintf(&b, "**Learning Objective:** %s\n\n", orDefault(a.Topic, "N/A"))
			fmt.Fprintf(&b, "**Your Answer:** %s\n", a.UserAnswer)
			fmt.Fprintf(&b, "**Correct Answer:** %s\n\n", a.Answer)
			fmt.Fprintf(&b, "**Explanation:** %s\n\n", orDefault(a.Explanation, "No explanation available"))
			fmt.Fprintf(&b, "**Time Spent:** %.1fs\n\n", a.TimeSpent)
			b.WriteString("---\n\n")
		}
	} else {
		b.WriteString("## ❌ Wrong Answers\n\nPerfect score! Excellent work! 🎉\n\n")
	}

	if len(wrong) > 0 {
		b.WriteString("## 📚 Topics to Review\n\n")
		for _, tc := range topicHistogram(wrong) {
			plural := ""
			if tc.count > 1 {
				plural = "s"
			}
			fmt.Fprintf(&b, "- **%s** (%d mistake%s)\n", tc.topic, tc.count, plural)
		}
		b.WriteString("\n")
	}

	b.WriteString("## 💡 Study Recommendations\n\n")
	if len(wrong) > 0 {
		b.WriteString("1. Review the Learning Objectives listed above\n")
		b.WriteString("2. Focus on understanding the key concepts in those topics\n")
		b.WriteString("3. Practice more questions on your weak areas\n")
		b.WriteString("4. Use the 'Practice Weak Topics' button to focus on difficult concepts\n")
	} else {
		b.WriteString("1. Keep practicing to maintain your knowledge\n")
		b.WriteString("2. Try more challenging questions in each unit\n")
	}
	b.WriteString("\n")

	b.WriteString("## 🌟 Keep Up the Good Work!\n\n")
	b.WriteString("Remember: Practice makes perfect! Keep working on your weak areas and you'll continue to improve.\n")

	return b.String()
}

// slowQuestions returns the indexes of answers that took more than 1.5x the
// average time.
func slowQuestions(answers []models.AnsweredQuestion, avgTime float64) []int {
	var slow []int
	for i, a := range answers {
		if a.TimeSpent > avgTime*1.5 {
			slow = append(slow, i)
		}
	}
	return slow
}

type topicCount struct {
	topic string
	count int
}

// topicHistogram counts mistakes per topic, most mistakes first. Ties break
// by topic name so output stays deterministic.
func topicHistogram(wrong []models.AnsweredQuestion) []topicCount {
	counts := make(map[string]int)
	for _, a := range wrong {
		topic := orDefault(a.Topic, "Unknown")
		counts[topic]++
	}

	histogram := make([]topicCount, 0, len(counts))
	for topic, count := range counts {
		histogram = append(histogram, topicCount{topic, count})
	}
	sort.Slice(histogram, func(i, j int) bool {
		if histogram[i].count != histogram[j].count {
			return histogram[i].count > histogram[j].count
		}
		return histogram[i].topic < histogram[j].topic
	})
	return histogram
}

// clip limits s to n characters, not bytes, so multi-byte text is never
// cut mid-rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
