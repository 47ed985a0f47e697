package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// Intents recognized by the router.
const (
	IntentGeneralChat   = "general_chat"
	IntentSendEmail     = "send_email"
	IntentCreateEvent   = "create_event"
	IntentAddTodo       = "add_todo"
	IntentSetReminder   = "set_reminder"
	IntentPostPackage   = "generate_post_prompt_package"
	IntentWebScraping   = "web_scraping"
	IntentLinkedIn      = "linkedin_insights"
	IntentEmailAuto     = "email_automation"
	IntentPriceMonitor  = "price_monitoring"
	IntentDataExtract   = "data_extraction"
	IntentCheckInbox    = "gmail_check_inbox"
	IntentUnreadCount   = "gmail_unread_count"
	IntentLinkedInNotif = "check_linkedin_notifications"
	IntentScrapePrice   = "scrape_price"
	IntentProductList   = "scrape_product_listings"
	IntentJobAlerts     = "linkedin_job_alerts"
	IntentWebsiteUpdate = "check_website_updates"
	IntentCompetitors   = "monitor_competitors"
	IntentNews          = "scrape_news_articles"
)

var directAutomationIntents = map[string]string{
	IntentCheckInbox:    "Checking your Gmail inbox...",
	IntentUnreadCount:   "Counting unread emails...",
	IntentLinkedInNotif: "Checking LinkedIn notifications...",
	IntentScrapePrice:   "Searching for current prices...",
	IntentProductList:   "Scraping product listings...",
	IntentJobAlerts:     "Checking LinkedIn job alerts...",
	IntentWebsiteUpdate: "Checking website updates...",
	IntentCompetitors:   "Monitoring competitor data...",
	IntentNews:          "Fetching latest news...",
}

// IsDirectAutomationIntent reports whether intent runs immediately without
// a model call or user approval.
func IsDirectAutomationIntent(intent string) bool {
	_, ok := directAutomationIntents[intent]
	return ok
}

// AutomationStatusMessage is the progress message shown while a direct
// automation runs.
func AutomationStatusMessage(intent string) string {
	if msg, ok := directAutomationIntents[intent]; ok {
		return msg
	}
	return "Processing automation..."
}

// heuristicRules are checked in order; the first phrase found wins.
var heuristicRules = []struct {
	intent  string
	phrases []string
}{
	{IntentUnreadCount, []string{"unread"}},
	{IntentCheckInbox, []string{"check my inbox", "check inbox", "my inbox", "check my email", "check my gmail", "new emails"}},
	{IntentLinkedInNotif, []string{"linkedin notification"}},
	{IntentJobAlerts, []string{"job alert"}},
	{IntentProductList, []string{"product listing"}},
	{IntentScrapePrice, []string{"price of", "price for", "how much does", "how much is"}},
	{IntentWebsiteUpdate, []string{"website update", "site update"}},
	{IntentCompetitors, []string{"competitor"}},
	{IntentNews, []string{"latest news", "news about", "news on", "headlines"}},
	{IntentPostPackage, []string{"linkedin post", "post about", "social media post"}},
	{IntentSendEmail, []string{"send an email", "send email", "write an email", "email to", "mail to"}},
	{IntentSetReminder, []string{"remind me", "reminder"}},
	{IntentAddTodo, []string{"todo", "to-do", "to do list", "add task", "add a task"}},
	{IntentCreateEvent, []string{"schedule", "meeting", "calendar", "appointment"}},
}

// DetectIntentHeuristic classifies message by keyword. Anything without a
// match is general_chat.
func DetectIntentHeuristic(message string) map[string]any {
	lower := strings.ToLower(message)
	for _, rule := range heuristicRules {
		for _, p := range rule.phrases {
			if strings.Contains(lower, p) {
				return map[string]any{"intent": rule.intent, "message": message}
			}
		}
	}
	return map[string]any{"intent": IntentGeneralChat, "message": message}
}

var errNoIntent = errors.New("no intent in model output")

// parseIntentJSON extracts the first JSON object from a model reply.
func parseIntentJSON(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoIntent
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, err
	}
	intent, _ := data["intent"].(string)
	if strings.TrimSpace(intent) == "" {
		return nil, errNoIntent
	}
	return data, nil
}

// IntentOf returns the intent field of intent data, or general_chat.
func IntentOf(data map[string]any) string {
	if s, ok := data["intent"].(string); ok && s != "" {
		return s
	}
	return IntentGeneralChat
}

const intentSystemPrompt = `You are an intent classifier for Elva, a personal assistant.
Classify the user's message and reply with a single JSON object and nothing else.

The object must have an "intent" field with one of:
general_chat, send_email, create_event, add_todo, set_reminder,
generate_post_prompt_package, gmail_check_inbox, gmail_unread_count,
check_linkedin_notifications, scrape_price, scrape_product_listings,
linkedin_job_alerts, check_website_updates, monitor_competitors,
scrape_news_articles, web_scraping, linkedin_insights, email_automation,
price_monitoring, data_extraction.

Add the fields that apply:
- send_email: recipient_name, recipient_email, subject, body
- create_event: event_title, date, time, participants, location
- add_todo: task, due_date
- set_reminder: reminder_text, reminder_time
- generate_post_prompt_package: topic, platform, post_description, ai_instructions
- scrape_price, scrape_product_listings: product, platform
- check_website_updates, monitor_competitors, web_scraping: url
- scrape_news_articles: topic

Use general_chat for greetings, questions and anything else.`
