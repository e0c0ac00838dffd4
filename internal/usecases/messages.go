package usecases

import (
	"fmt"
	"strings"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
)

// Links shown in user-facing messages.
type Links struct {
	App     string
	Channel string
}

func (l Links) footer() string {
	var sb strings.Builder
	if l.App != "" {
		sb.WriteString(fmt.Sprintf("\n\n📱 Download Nova Learn App:\n%s", l.App))
	}
	if l.Channel != "" {
		sb.WriteString(fmt.Sprintf("\n\n📢 Join our WhatsApp channel:\n%s", l.Channel))
	}
	return sb.String()
}

func WelcomeMessage(links Links, dailyCap int64) string {
	return "🤖 Welcome to NovaAiBot!\n\n" +
		"I answer your Physics, Chemistry and Biology questions using AI.\n\n" +
		"📝 How to use:\n" +
		"• Send me text questions directly\n" +
		"• Send photos of problems, diagrams or equations\n" +
		"• Add a caption to photos for specific questions\n" +
		fmt.Sprintf("• You can use up to %d credits per day (text = %d, photo = %d)", dailyCap, TextCost, ImageCost) +
		links.footer() +
		"\n\nSend me a question or photo to get started!"
}

func HelpMessage(links Links) string {
	return "🆘 NovaAiBot Help\n\n" +
		"Commands:\n" +
		"/start - Start the bot\n" +
		"/help - Show this help message\n" +
		"/status - Check your credits and daily limit\n" +
		"/share - Get a QR code to share the bot\n\n" +
		"📸 Image questions:\n" +
		"1. Take a photo of your problem or diagram\n" +
		"2. Add a caption (optional but recommended)\n" +
		"3. Send it to the bot\n\n" +
		"Limits:\n" +
		fmt.Sprintf("• Text question: %d credit, photo question: %d credits\n", TextCost, ImageCost) +
		"• Images must be under 5MB" +
		links.footer()
}

func StatusMessage(st entities.QuotaStatus, links Links) string {
	msg := fmt.Sprintf("📊 Your NovaAI status\n\n"+
		"💳 Balance: %d credits\n"+
		"📅 Used today: %d of %d\n"+
		"❓ Questions asked: %d",
		st.Balance, st.DailyUsed, st.DailyCap, st.TotalQuestions)
	if st.DailyRemaining == 0 {
		msg += "\n\n⏰ You've reached today's limit. Come back tomorrow!" + links.footer()
	}
	return msg
}

// RejectionMessage explains why a question was not admitted.
func RejectionMessage(d Decision, balance, cost int64, links Links) string {
	switch d {
	case RejectDailyLimit:
		return "⚠️ Daily Limit Reached!\n\n" +
			"You've used your free questions for today.\n\n" +
			"💡 Your daily limit resets tomorrow." +
			links.footer()
	case RejectInsufficientBalance:
		return fmt.Sprintf("💳 Not enough credits\n\n"+
			"This question needs %d credits but your balance is %d.", cost, balance) +
			links.footer()
	}
	return ""
}

func waitMessage(isImage bool) string {
	if isImage {
		return "⏳ Processing your image...\n\n" +
			"🤖 AI is analyzing the image and preparing a detailed answer.\n" +
			"⏱️ Image analysis may take 2-5 minutes.\n\n" +
			"Please wait..."
	}
	return "⏳ Processing your question...\n\n" +
		"🤖 AI is analyzing and preparing a detailed answer.\n" +
		"⏱️ This may take 30-90 seconds.\n\n" +
		"Please wait..."
}

func answerFooter(isImage bool, links Links) string {
	footer := "\n\n━━━━━━━━━━━━━━━━━━\n🤖 Powered by NovaAI"
	if isImage {
		footer += "\n📸 Image analysis complete"
	}
	if links.App != "" {
		footer += "\n📱 Get unlimited access: " + links.App
	}
	return footer
}

func failureMessage(isImage bool, links Links) string {
	what := "question"
	if isImage {
		what = "image"
	}
	return fmt.Sprintf("❌ Sorry, I encountered an error processing your %s.\n\n", what) +
		"This could be due to high server load or temporary API issues.\n\n" +
		"Please try again in a few moments." +
		links.footer()
}

const (
	msgUnauthorized    = "⛔ Unauthorized Access\n\nThis command is only available to the bot owner."
	msgAIDisabled      = "🛠️ NovaAI is taking a short break. Please try again later."
	DefaultImagePrompt = "Please analyze this image and explain what you see. If it's a problem, solve it. If it's a diagram, explain it."
)

func statsMessage(s Stats) string {
	ai := "ON ✅"
	if !s.AIEnabled {
		ai = "OFF ⛔"
	}
	return fmt.Sprintf("⚙️ Bot Settings (Owner Only)\n\n"+
		"👥 Total Users: %d\n"+
		"❓ Total Questions: %d\n"+
		"💬 User Chats: %d\n"+
		"👥 Group Chats: %d\n"+
		"📱 Total Chats: %d\n"+
		"📣 Ads: %d (%d active)\n"+
		"🤖 AI: %s",
		s.TotalUsers, s.TotalQuestions, s.UserChats, s.GroupChats, s.TotalChats, s.TotalAds, s.ActiveAds, ai)
}

func adListMessage(ads []entities.AdSummary) string {
	if len(ads) == 0 {
		return "📣 No scheduled ads yet. Use /newad to create one."
	}
	var sb strings.Builder
	sb.WriteString("📣 Scheduled ads\n")
	for _, ad := range ads {
		state := "▶️ active"
		if !ad.Enabled {
			state = "⏸️ paused"
		}
		next := "-"
		if ad.NextPostAt != nil {
			next = ad.NextPostAt.UTC().Format(time.RFC822)
		}
		sb.WriteString(fmt.Sprintf("\n#%d %s [%s]\n   every %dh to %d chats, %d posts, next %s\n",
			ad.ID, ad.Name, state, ad.IntervalHours, ad.TargetCount, ad.TotalPosts, next))
	}
	return sb.String()
}

func builderPrompt(step BuilderStep) string {
	switch step {
	case StepName:
		return "🆕 New ad\n\nSend a name for this ad. /cancel to stop."
	case StepKind:
		return "Is this a text or image ad? Reply with: text or image"
	case StepContent:
		return "Send the ad content. For an image ad send the photo with its caption."
	case StepInterval:
		return "How often should it be posted? Send the interval in hours (at least 1)."
	case StepTargets:
		return "Where should it be posted? Reply with: groups, users, all, or chat ids separated by spaces."
	}
	return ""
}
