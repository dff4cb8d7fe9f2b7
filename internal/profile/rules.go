package profile

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

const stop = `(?:\s*[,.;:!?，。；！？]|\s+(?:and|but|in|since|when|where|for|at|until|because)\b|$)`

var rulePatterns = map[interview.Field][]*regexp.Regexp{
	interview.FieldName: {
		regexp.MustCompile(`(?i)\bmy name is\s+(\p{L}[\p{L}'\-]*(?:\s+\p{L}[\p{L}'\-]*){0,3}?)` + stop),
		regexp.MustCompile(`(?i)\b(?:call me|people call me|everyone calls me)\s+(\p{L}[\p{L}'\-]*(?:\s+\p{L}[\p{L}'\-]*){0,2}?)` + stop),
		regexp.MustCompile(`(?:我叫|我的名字是|名字叫|大家叫我)\s*([\p{Han}A-Za-z]{1,10}?)(?:[，。,.！!？?\s]|$)`),
	},
	interview.FieldBirthYear: {
		regexp.MustCompile(`(?i)\bI\s+(?:was|am|'m)\s+born\b[^.!?]*?\b(1[89]\d{2}|20\d{2})\b`),
		regexp.MustCompile(`(?i)\bmy\s+birth\s*year\s*(?:is|was|:)?\s*(1[89]\d{2}|20\d{2})\b`),
		regexp.MustCompile(`我[^，。,.！!？?；;]{0,6}?(1[89]\d{2}|20\d{2})\s*年\s*(?:出生|生)`),
		regexp.MustCompile(`(?:^|[，,；;\s])(1[89]\d{2}|20\d{2})\s*年\s*(?:出生|生)`),
		regexp.MustCompile(`(?:^|我是?|[，,；;\s])(?:出生于|生于|出生在)\s*(1[89]\d{2}|20\d{2})`),
	},
	interview.FieldHometown: {
		regexp.MustCompile(`(?i)\b(?:i was born in|i grew up in|i'm from|i am from|i come from|my hometown (?:is|was))\s+(\p{L}[\p{L}'\-]*(?:\s+\p{L}[\p{L}'\-]*){0,3}?)` + stop),
		regexp.MustCompile(`(?:老家是|老家在|家乡是|家乡在|我来自|出生在)\s*(\p{Han}{2,8}?)(?:[，。,.！!的人\s]|$)`),
	},
	interview.FieldOccupation: {
		regexp.MustCompile(`(?i)\b(?:i worked as|i work as|i was working as|my job (?:is|was)|my profession (?:is|was)|my occupation (?:is|was))\s+(?:an?\s+)?(\p{L}[\p{L}'\-]*(?:\s+\p{L}[\p{L}'\-]*){0,3}?)` + stop),
		regexp.MustCompile(`(?i)\b(?:i'm|i am|i was)\s+an?\s+retired\s+(\p{L}[\p{L}'\-]*(?:\s+\p{L}[\p{L}'\-]*){0,2}?)` + stop),
		regexp.MustCompile(`(?:我当过|我做过|我的职业是|当了一辈子的?|干了一辈子的?)\s*(\p{Han}{2,6}?)(?:[，。,.！!\s]|$)`),
	},
	interview.FieldEducation: {
		regexp.MustCompile(`(?i)\b(?:i graduated from|i studied at|i went to|i attended)\s+(\p{L}[\p{L}'\-]*(?:\s+\p{L}[\p{L}'\-]*){0,5}?)` + stop),
		regexp.MustCompile(`(?:毕业于|就读于)\s*(\p{Han}{2,12}?)(?:[，。,.！!\s]|$)`),
		regexp.MustCompile(`(\p{Han}{2,10}(?:大学|学院|中学|师范))毕业`),
	},
}

var (
	introName   = regexp.MustCompile(`\b(?:I'm|I am|This is)\s+(\p{Lu}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*){0,2})`)
	bareYear    = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
	bareYearZH  = regexp.MustCompile(`(1[89]\d{2}|20\d{2})\s*年`)
	selfIntroZH = regexp.MustCompile(`^我是\s*(\p{Han}{2,4})(?:[，。,.！!\s]|$)`)
	answerLead  = regexp.MustCompile(`(?i)^(?:it's|it is|it was|that's|that is|i'm|i am|i was|just|in|at|from)\s+`)
)

// nonAnswers disqualify a short reply from being taken as a field value.
// Latin entries match whole words.
var nonAnswers = []string{
	"don't", "dont", "not", "know", "remember", "sure", "skip", "pass", "rather",
	"hello", "hi", "hey", "there", "well", "ok", "okay", "yes", "no", "thanks", "um", "hmm",
	"不知道", "不记得", "不想", "算了", "你好", "您好", "嗯", "好的",
}

// thirdParty spots a sentence about someone other than the speaker.
var thirdParty = regexp.MustCompile(`(?i)\b(?:my|our|his|her|their)\s+(?:sons?|daughters?|child|children|kids?|babies|baby|father|mother|dad|mum|mom|parents?|brothers?|sisters?|wife|husband|grand\w+|friends?|uncles?|aunts?|cousins?|nephews?|nieces?)\b|儿子|女儿|孩子|父亲|母亲|爸爸|妈妈|哥哥|姐姐|弟弟|妹妹|妻子|丈夫|老伴|爱人|孙子|孙女|外孙|朋友|他|她`)

// Candidate is a value found for one field.
type Candidate struct {
	Value string
	// Correcting is set when the sentence carrying Value also says it
	// corrects an earlier answer.
	Correcting bool
}

// RuleExtractor recognises common English and Chinese phrasings with
// regular expressions. It never fails.
type RuleExtractor struct {
	// Now supplies the current time for birth-year validation.
	Now func() time.Time
}

// NewRuleExtractor returns a RuleExtractor using the wall clock.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{Now: time.Now}
}

func (r *RuleExtractor) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *RuleExtractor) Extract(ctx context.Context, p interview.Profile, text string) (Update, error) {
	return Merge(p, Candidates(ctx, text), r.now()), nil
}

// Candidates returns the value found for each field in text. Matches in a
// sentence about a relative or another person are ignored.
func Candidates(ctx context.Context, text string) map[interview.Field]Candidate {
	text = strings.TrimSpace(text)
	found := make(map[interview.Field]Candidate)
	if text == "" {
		return found
	}

	expected, hinted := Expected(ctx)
	for _, f := range interview.Fields() {
		patterns := rulePatterns[f]
		if hinted && expected == interview.FieldName && f == interview.FieldName {
			patterns = append(patterns[:len(patterns):len(patterns)], introName)
		}
		for _, re := range patterns {
			if c, ok := firstPersonMatch(re, text); ok {
				found[f] = c
				break
			}
		}
	}

	if hinted {
		if _, already := found[expected]; !already && !thirdParty.MatchString(text) {
			if v, ok := bareAnswer(expected, text); ok {
				found[expected] = Candidate{Value: v, Correcting: IsCorrection(text)}
			}
		}
	}
	return found
}

// firstPersonMatch returns the first match of re whose sentence, up to the
// end of the match, does not talk about someone else.
func firstPersonMatch(re *regexp.Regexp, text string) (Candidate, bool) {
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		if loc[2] < 0 {
			continue
		}
		start, end := sentenceBounds(text, loc[0], loc[1])
		if thirdParty.MatchString(text[start:loc[1]]) {
			continue
		}
		return Candidate{
			Value:      strings.TrimSpace(text[loc[2]:loc[3]]),
			Correcting: IsCorrection(text[start:end]),
		}, true
	}
	return Candidate{}, false
}

// sentenceBounds widens [from, to) to the sentence that contains it.
func sentenceBounds(text string, from, to int) (int, int) {
	start := strings.LastIndexAny(text[:from], ".!?。！？\n")
	if start < 0 {
		start = 0
	} else {
		_, size := utf8.DecodeRuneInString(text[start:])
		start += size
	}
	end := strings.IndexAny(text[to:], ".!?。！？\n")
	if end < 0 {
		end = len(text)
	} else {
		end += to
	}
	return start, end
}

// bareAnswer interprets a short reply to a direct question about f.
func bareAnswer(f interview.Field, text string) (string, bool) {
	if f == interview.FieldBirthYear {
		if m := bareYearZH.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
		if m := bareYear.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
		return "", false
	}

	if f == interview.FieldName {
		if m := selfIntroZH.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}

	answer := strings.Trim(strings.TrimSpace(text), ".,;:!?。，；：！？")
	answer = answerLead.ReplaceAllString(answer, "")
	if answer == "" || len(strings.Fields(answer)) > 4 {
		return "", false
	}
	if isNonAnswer(answer) {
		return "", false
	}
	hasHan := false
	for _, r := range answer {
		if unicode.Is(unicode.Han, r) {
			hasHan = true
		}
	}
	if hasHan && len([]rune(answer)) > 12 {
		return "", false
	}
	return answer, true
}

func isNonAnswer(answer string) bool {
	lower := strings.ToLower(answer)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, n := range nonAnswers {
		if !isASCII(n) {
			if strings.Contains(lower, n) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == n {
				return true
			}
		}
	}
	return false
}
