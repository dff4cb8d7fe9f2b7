package question

import (
	"fmt"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

const greetingText = "Hello! I'm here to help you record the story of your life, one conversation at a time. There are no wrong answers, so just talk the way you would with family."

const exhaustedText = `We have now talked about every part of your life I had planned to ask about. Whenever you are ready, say "write my memoir" and I will put it all together, or keep telling me anything else you remember.`

const capReachedText = `We have covered a great deal today. Say "write my memoir" to put your stories together, or /exit to finish for now.`

const readyNudgeText = `Your memoir is ready whenever you are. Say "continue" to keep talking, or ask me to write it in a factual, literary or letter style.`

var fieldPrompts = map[interview.Field]string{
	interview.FieldName:       "What would you like me to call you?",
	interview.FieldBirthYear:  "What year were you born?",
	interview.FieldHometown:   "Where is your hometown?",
	interview.FieldOccupation: "What did you do for work before you retired?",
	interview.FieldEducation:  "Could you tell me a little about your schooling?",
}

func fieldPrompt(f interview.Field) string {
	if s, ok := fieldPrompts[f]; ok {
		return s
	}
	return fmt.Sprintf("Could you tell me your %s?", f)
}

var deepPrompts = map[interview.TopicID]string{
	interview.TopicChildhood:       "Let's go back to the very beginning. What is your earliest memory of the place where you grew up?",
	interview.TopicFamily:          "Tell me about your parents and the rest of your family. What were they like when you were young?",
	interview.TopicSchoolYears:     "What do you remember about your school days? Was there a teacher or classmate who stayed with you?",
	interview.TopicYouth:           "When you were a young adult, what did you dream of becoming?",
	interview.TopicLoveAndMarriage: "How did you meet the person you fell in love with?",
	interview.TopicCareer:          "How did you start out in your working life? What was an ordinary working day like?",
	interview.TopicHardships:       "Every life has hard stretches. What was one of the hardest times you went through, and what carried you through it?",
	interview.TopicHistoricalTimes: "The world changed a great deal during your lifetime. Which events of those years touched your own life most?",
	interview.TopicRaisingChildren: "What was it like when your children were small?",
	interview.TopicRetirement:      "How have you spent your days since you stopped working?",
	interview.TopicLifeLessons:     "Looking back over everything, what would you most want your grandchildren to learn from your life?",
}

// deepTemplate personalises the built-in topic question with known fields.
func deepTemplate(id interview.TopicID, p interview.Profile) string {
	switch {
	case id == interview.TopicChildhood && p.Hometown != "":
		return fmt.Sprintf("What was it like growing up in %s? What is your earliest memory of it?", p.Hometown)
	case id == interview.TopicSchoolYears && p.Education != "":
		return fmt.Sprintf("What do you remember about your time at %s? Was there a teacher or classmate who stayed with you?", p.Education)
	case id == interview.TopicCareer && p.Occupation != "":
		return fmt.Sprintf("How did you come to work as a %s? What was an ordinary working day like?", p.Occupation)
	case id == interview.TopicRetirement && p.Occupation != "":
		return fmt.Sprintf("After all those years as a %s, how have you spent your days since you retired?", p.Occupation)
	case id == interview.TopicHistoricalTimes && p.BirthYear != 0:
		return fmt.Sprintf("You were born in the %ds. Which events of the decades that followed touched your own life most?", Decade(p.BirthYear))
	}
	if s, ok := deepPrompts[id]; ok {
		return s
	}
	return fmt.Sprintf("Tell me about %s.", id.Title())
}

func followUpTemplate(id interview.TopicID) string {
	return fmt.Sprintf("Take your time, there is no rush. Thinking about %s, is there one moment that stands out, even a small one?", lowerTitle(id))
}

func closingText(p interview.Profile, exchanges int) string {
	thanks := "Thank you for sharing your stories with me today."
	if p.Name != "" {
		thanks = fmt.Sprintf("Thank you, %s, for sharing your stories with me today.", p.Name)
	}
	return fmt.Sprintf("%s We talked through %d exchanges and everything is saved. We can pick up again whenever you like.", thanks, exchanges)
}

// ClosingText is the unphrased farewell message.
func ClosingText(p interview.Profile, exchanges int) string { return closingText(p, exchanges) }

// CapReachedText is the reply once a session hits its turn limit.
func CapReachedText() string { return capReachedText }

// ReadyNudgeText is the reply to free text while a memoir is ready.
func ReadyNudgeText() string { return readyNudgeText }

func lowerTitle(id interview.TopicID) string {
	switch id {
	case interview.TopicHistoricalTimes:
		return "those times"
	case interview.TopicHardships:
		return "those hard times"
	case interview.TopicRaisingChildren:
		return "the years raising your children"
	case interview.TopicLifeLessons:
		return "what life has taught you"
	}
	b := []rune(id.Title())
	for i, r := range b {
		if r >= 'A' && r <= 'Z' {
			b[i] = r + ('a' - 'A')
		}
	}
	return "your " + string(b)
}
