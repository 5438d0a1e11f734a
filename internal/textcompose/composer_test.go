package textcompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposer_CleanDropsStopWordsAndPunctuation(t *testing.T) {
	c := New(false)
	out := c.Compose([]Source{{Text: "The Forest Wind, recording!", Budget: 10}})
	assert.Equal(t, "forest wind", out)
}

func TestComposer_RespectsPerSourceBudget(t *testing.T) {
	c := New(false)
	out := c.Compose([]Source{{Text: "one two three four", Budget: 2}})
	assert.Equal(t, "one two", out)
}

func TestComposer_PriorityOrderPreserved(t *testing.T) {
	c := New(false)
	sources := SegmentSources("forest wind", "field recording batch", "ambient nature")
	out := c.Compose(sources)
	assert.Equal(t, "forest wind field batch ambient nature", out)
}

func TestComposer_GlobalCapTruncatesTail(t *testing.T) {
	c := New(false)
	longText := ""
	for i := 0; i < 30; i++ {
		longText += "word "
	}
	out := c.Compose([]Source{{Text: longText, Budget: 25}})
	assert.Len(t, splitWords(out), 20)
}

func TestComposer_Deterministic(t *testing.T) {
	c := New(false)
	sources := SegmentSources("forest wind", "field recording", "nature")
	assert.Equal(t, c.Compose(sources), c.Compose(sources))
}

func TestComposer_Enhance_NoBudget(t *testing.T) {
	c := New(false)
	out := c.Enhance("the forest wind sound recording")
	assert.Equal(t, "forest wind", out)
}

func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	words := []string{}
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				words = append(words, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		words = append(words, cur)
	}
	return words
}
