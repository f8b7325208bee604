// Package catalog builds the canonical item catalog by querying the game
// info bot one item id at a time and parsing its page replies.
package catalog

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Qzero991/telegram-rpg-trade-client/internal/database"
)

// ErrUnrecognized means a reply matched none of the known page layouts.
var ErrUnrecognized = errors.New("unrecognized oracle reply")

// GradeUndefined is stored when a page carries no grade or duration.
const GradeUndefined = "undefined"

// Page layouts of the info bot. The name sits on the third line of the page
// header; recipes and potions embed their grade inside the name line.
var (
	equipNamePattern      = regexp.MustCompile(`Страница экипировки.*?\n[^\n]*?\n.*?([A-Za-zА-Яа-яЁё '’.]+[^\n\[\]\(\)]*)`)
	resourceNamePattern   = regexp.MustCompile(`Страница ресурса.*?\n[^\n]*?\n.*?([A-Za-zА-Яа-яЁё0-9 "'’.%+-]+)`)
	recipeNamePattern     = regexp.MustCompile(`(Рецепт)\s*\[.*?]([^\(\)\n]*)`)
	potionNamePattern     = regexp.MustCompile(`(Зелье)\s*\[.*?]([^\(\)\n]*)`)
	gradePattern          = regexp.MustCompile(`^.*?\n.*?\n.*?(\[[^\]]+\])`)
	durationPattern       = regexp.MustCompile(`Время действия:\s*?([A-Za-zА-Яа-яЁё0-9 ]+)`)
	durationInNamePattern = regexp.MustCompile(`\s*(\d+\s*[\p{L}\p{N}_]+)$`)
	potionDurationPattern = regexp.MustCompile(`Действие:\s*?([A-Za-zА-Яа-яЁё0-9 ]+)`)
)

// Resource pages for skill-book materials append the grade to the name line
// without brackets.
const (
	skillMarker     = "Требуется для изучения навыка"
	techniqueMarker = "Требуется для изучения боевого приема"
)

// ParseReply extracts the item attributes from an oracle page reply.
func ParseReply(kind database.ItemKind, gameID int, text string) (*database.Item, error) {
	var name, grade, duration string

	switch {
	case kind == database.KindEquipment && equipNamePattern.MatchString(text):
		name = strings.TrimSpace(equipNamePattern.FindStringSubmatch(text)[1])

	case kind == database.KindResource && resourceNamePattern.MatchString(text):
		head := strings.TrimSpace(resourceNamePattern.FindStringSubmatch(text)[1])
		switch {
		case head == "Рецепт":
			m := recipeNamePattern.FindStringSubmatch(text)
			if m == nil {
				return nil, ErrUnrecognized
			}
			name = strings.TrimSpace(m[1] + m[2])
		case head == "Зелье":
			m := potionNamePattern.FindStringSubmatch(text)
			if m == nil {
				return nil, ErrUnrecognized
			}
			name = strings.TrimSpace(m[1] + m[2])
			if d := potionDurationPattern.FindStringSubmatch(text); d != nil {
				duration = strings.TrimSpace(d[1])
			}
		case strings.Contains(text, skillMarker) || strings.Contains(text, techniqueMarker):
			name, grade = splitTrailingGrade(head)
		default:
			name = head
		}

	default:
		return nil, ErrUnrecognized
	}

	if name == "" {
		return nil, ErrUnrecognized
	}

	if grade == "" {
		if m := gradePattern.FindStringSubmatch(text); m != nil {
			grade = strings.TrimSpace(m[1])
		} else {
			grade = GradeUndefined
		}
	}
	if duration == "" {
		if m := durationPattern.FindStringSubmatch(text); m != nil {
			duration = strings.TrimSpace(m[1])
		} else {
			duration = GradeUndefined
		}
	}

	// Some items state their duration at the end of the name instead of on
	// a dedicated line.
	if m := durationInNamePattern.FindStringSubmatch(name); m != nil {
		name = strings.TrimSpace(durationInNamePattern.ReplaceAllString(name, ""))
		if duration == GradeUndefined {
			duration = strings.TrimSpace(m[1])
		}
	}

	return &database.Item{
		GameID:   gameID,
		Name:     name,
		Kind:     kind,
		Grade:    grade,
		Duration: duration,
	}, nil
}

// splitTrailingGrade splits "Учебник мечника III" into ("Учебник мечника",
// "[III]"). Tails longer than four runes are part of the name, not a grade.
func splitTrailingGrade(head string) (name, grade string) {
	idx := strings.LastIndex(head, " ")
	if idx < 0 {
		return head, GradeUndefined
	}
	tail := head[idx+1:]
	if utf8.RuneCountInString(tail) > 4 {
		return head, GradeUndefined
	}
	return head[:idx], "[" + tail + "]"
}
