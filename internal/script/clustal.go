package script

import (
	"fmt"
	"time"
)

// ClustalTimelineID identifies the built-in product demo
const ClustalTimelineID = "clustal"

const (
	inboxDuration    = 8000 * time.Millisecond
	chatDuration     = 12000 * time.Millisecond
	settingsDuration = 10000 * time.Millisecond

	learningTarget   = 94
	learningStep     = 2
	learningInterval = 30 * time.Millisecond
	learningStart    = 2500 * time.Millisecond

	customersTarget   = 2847
	customersStep     = 47
	customersInterval = 20 * time.Millisecond
	customersStart    = 3000 * time.Millisecond
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Clustal returns the built-in three screen demo: the inbox, a live chat
// handled by the assistant, and the assistant settings page.
func Clustal() *Timeline {
	t, err := NewTimeline(ClustalTimelineID,
		mustSegment(NewSegment("inbox", "Inbox", inboxDuration, inboxSteps()...)),
		mustSegment(NewSegment("chat", "Live Chat", chatDuration, chatSteps()...)),
		mustSegment(NewSegment("settings", "AI Settings", settingsDuration, settingsSteps()...)),
	)
	if err != nil {
		panic(fmt.Sprintf("built-in timeline is invalid: %v", err))
	}
	return t
}

func mustSegment(seg *Segment, err error) *Segment {
	if err != nil {
		panic(fmt.Sprintf("built-in segment is invalid: %v", err))
	}
	return seg
}

type conversation struct {
	name, avatar, message, age, responseTime string
	unread                                   bool
}

var inboxConversations = []conversation{
	{"Maria Santos", "MS", "Perfect! I'll book for 3pm tomorrow", "2m", "8s", false},
	{"João Silva", "JS", "Do you have the blue model in stock?", "5m", "4s", false},
	{"Ana Costa", "AC", "What are your opening hours?", "12m", "6s", false},
	{"Pedro Oliveira", "PO", "Thanks for the quick response!", "18m", "5s", false},
	{"Carla Mendes", "CM", "Can I reschedule my appointment?", "just now", "", true},
}

func inboxSteps() []Step {
	steps := []Step{
		{ID: "inbox-header", Offset: 0, Kind: KindReveal, Payload: map[string]any{"element": "header", "title": "Inbox"}},
		{ID: "inbox-stats", Offset: ms(300), Kind: KindBannerShow, Payload: map[string]any{"element": "stats", "average": "6s"}},
		{ID: "inbox-stats-count", Offset: ms(500), Kind: KindReveal, Payload: map[string]any{"element": "stats_count", "text": "47 AI responses today"}},
	}

	for i, conv := range inboxConversations {
		steps = append(steps, Step{
			ID:     fmt.Sprintf("inbox-conversation-%d", i+1),
			Offset: ms(400 + i*150),
			Kind:   KindReveal,
			Payload: map[string]any{
				"element": "conversation",
				"name":    conv.name,
				"avatar":  conv.avatar,
				"message": conv.message,
				"age":     conv.age,
				"unread":  conv.unread,
			},
		})
		if conv.unread {
			steps = append(steps, Step{
				ID:      fmt.Sprintf("inbox-unread-%d", i+1),
				Offset:  ms(600 + i*150),
				Kind:    KindToggle,
				Payload: map[string]any{"element": "unread_badge", "name": conv.name, "on": true},
			})
			continue
		}
		steps = append(steps, Step{
			ID:      fmt.Sprintf("inbox-ai-badge-%d", i+1),
			Offset:  ms(800 + i*100),
			Kind:    KindReveal,
			Payload: map[string]any{"element": "ai_badge", "name": conv.name, "response_time": conv.responseTime},
		})
	}

	steps = append(steps, Step{
		ID:      "inbox-new-message",
		Offset:  ms(2000),
		Kind:    KindBannerShow,
		Payload: map[string]any{"element": "notification", "text": "New message from Carla"},
	})
	return steps
}

func chatSteps() []Step {
	message := func(id string, offset int, from, text string) Step {
		return Step{ID: id, Offset: ms(offset), Kind: KindReveal,
			Payload: map[string]any{"element": "message", "from": from, "text": text}}
	}
	typing := func(id string, offset int, on bool) Step {
		return Step{ID: id, Offset: ms(offset), Kind: KindToggle,
			Payload: map[string]any{"element": "typing", "on": on}}
	}

	return []Step{
		{ID: "chat-header", Offset: 0, Kind: KindReveal, Payload: map[string]any{"element": "header", "contact": "Carla Mendes", "status": "online"}},
		{ID: "chat-ai-banner", Offset: ms(300), Kind: KindBannerShow, Payload: map[string]any{"element": "ai_active", "text": "Clustal AI is handling this conversation"}},
		message("chat-customer-1", 500, "customer", "Hi! Do you have any appointments available tomorrow?"),
		typing("chat-typing-1-on", 2000, true),
		typing("chat-typing-1-off", 3500, false),
		message("chat-ai-1", 3500, "ai", "Hello! 👋 Yes, we have several slots available tomorrow. We have openings at 10am, 2pm, and 4pm. Which time works best for you?"),
		message("chat-customer-2", 6000, "customer", "2pm would be perfect!"),
		typing("chat-typing-2-on", 7500, true),
		typing("chat-typing-2-off", 9000, false),
		message("chat-ai-2", 9000, "ai", "Excellent choice! ✨ I've reserved the 2pm slot for you tomorrow. You'll receive a confirmation SMS shortly. Is there anything specific you'd like us to prepare for your visit?"),
		{ID: "chat-response-time", Offset: ms(9500), Kind: KindBannerShow, Payload: map[string]any{"element": "response_time", "time": "6s"}},
	}
}

var settingsToggles = []struct {
	id, label string
	offset    int
}{
	{"auto", "Auto-respond to messages", 500},
	{"hours", "24/7 availability", 700},
	{"handoff", "Smart human handoff", 900},
	{"learn", "Learn from corrections", 1100},
}

var knowledgeSources = []struct {
	name, items string
	offset      int
}{
	{"Product Catalog", "847 products", 1500},
	{"FAQs & Policies", "124 answers", 1700},
	{"Business Hours", "Updated", 1900},
}

func settingsSteps() []Step {
	steps := []Step{
		{ID: "settings-header", Offset: 0, Kind: KindReveal, Payload: map[string]any{"element": "header", "title": "AI Settings"}},
		{ID: "settings-status", Offset: ms(200), Kind: KindBannerShow, Payload: map[string]any{"element": "status", "text": "Clustal AI Active"}},
	}
	for _, tg := range settingsToggles {
		steps = append(steps, Step{
			ID:      "settings-toggle-" + tg.id,
			Offset:  ms(tg.offset),
			Kind:    KindToggle,
			Payload: map[string]any{"element": "setting", "setting": tg.id, "label": tg.label, "on": true},
		})
	}
	for i, src := range knowledgeSources {
		steps = append(steps, Step{
			ID:      fmt.Sprintf("settings-source-%d", i+1),
			Offset:  ms(src.offset),
			Kind:    KindReveal,
			Payload: map[string]any{"element": "knowledge_source", "name": src.name, "items": src.items},
		})
	}
	steps = append(steps, counterSteps("settings-learning", "learning_progress", learningStart, learningInterval, learningStep, learningTarget)...)
	steps = append(steps, counterSteps("settings-customers", "customers_served", customersStart, customersInterval, customersStep, customersTarget)...)
	return steps
}

// counterSteps expands an animated counter into one tick per interval,
// clamping the final tick at target
func counterSteps(prefix, counter string, start, interval time.Duration, step, target int) []Step {
	var steps []Step
	value := 0
	for tick := 1; value < target; tick++ {
		value += step
		if value > target {
			value = target
		}
		steps = append(steps, Step{
			ID:      fmt.Sprintf("%s-%d", prefix, tick),
			Offset:  start + time.Duration(tick)*interval,
			Kind:    KindCounterTick,
			Payload: map[string]any{"element": "counter", "counter": counter, "value": value, "target": target},
		})
	}
	return steps
}
