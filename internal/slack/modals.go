package slackbot

import (
	"fmt"

	"github.com/slack-go/slack"
)

// Modal callback and block identifiers. Submissions are routed by callback ID
// and field values are read back out of the state by block and action ID.
const (
	ConfigModalCallbackID        = "birdwatcher_config_modal"
	NotificationsModalCallbackID = "birdwatcher_notifications_modal"

	TokenBlockID  = "tinybird_token_block"
	TokenActionID = "tinybird_token"
	HostBlockID   = "tinybird_host_block"
	HostActionID  = "tinybird_host"

	NotificationOptionsBlockID  = "notification_options_block"
	NotificationOptionsActionID = "notification_options"
)

// Notification types offered in the notifications modal
const (
	NotificationDailySummary = "daily_summary"
	NotificationCPUSpikes    = "cpu_spikes"
)

var notificationOptionLabels = map[string]string{
	NotificationDailySummary: "Daily organization metrics summary",
	NotificationCPUSpikes:    "Dedicated cluster health",
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func mrkdwnSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

// NewConfigModal builds the channel configuration modal. The channel ID rides
// in private metadata so the submission handler knows which channel to bind.
func NewConfigModal(channelID string) slack.ModalViewRequest {
	tokenInput := slack.NewPlainTextInputBlockElement(
		plainText("Enter your Tinybird organization admin token"), TokenActionID)
	hostInput := slack.NewPlainTextInputBlockElement(
		plainText("e.g., https://api.tinybird.co"), HostActionID)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      ConfigModalCallbackID,
		Title:           plainText("Configure Birdwatcher"),
		Submit:          plainText("Save Configuration"),
		Close:           plainText("Cancel"),
		PrivateMetadata: channelID,
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				mrkdwnSection(fmt.Sprintf("*Configure Birdwatcher for:* <#%s>", channelID)),
				slack.NewDividerBlock(),
				mrkdwnSection("Get your Tinybird <https://cloud.tinybird.co/tokens|organization admin token> and <https://www.tinybird.co/docs/api-reference?#regions-and-endpoints|API host>"),
				slack.NewInputBlock(TokenBlockID, plainText("Tinybird org admin token"), nil, tokenInput),
				slack.NewInputBlock(HostBlockID, plainText("Tinybird API Host"), nil, hostInput),
			},
		},
	}
}

// NewNotificationsModal builds the notification preferences modal, pre-checking
// the types already subscribed.
func NewNotificationsModal(channelID string, subscribed []string) slack.ModalViewRequest {
	options := []*slack.OptionBlockObject{
		slack.NewOptionBlockObject(NotificationDailySummary,
			plainText(notificationOptionLabels[NotificationDailySummary]), nil),
		slack.NewOptionBlockObject(NotificationCPUSpikes,
			plainText(notificationOptionLabels[NotificationCPUSpikes]), nil),
	}

	checkboxes := slack.NewCheckboxGroupsBlockElement(NotificationOptionsActionID, options...)

	var initial []*slack.OptionBlockObject
	for _, value := range subscribed {
		if label, ok := notificationOptionLabels[value]; ok {
			initial = append(initial, slack.NewOptionBlockObject(value, plainText(label), nil))
		}
	}
	if len(initial) > 0 {
		checkboxes.InitialOptions = initial
	}

	input := slack.NewInputBlock(NotificationOptionsBlockID, plainText("Notification Preferences"), nil, checkboxes)
	input.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      NotificationsModalCallbackID,
		Title:           plainText("Notifications"),
		Submit:          plainText("Save"),
		Close:           plainText("Cancel"),
		PrivateMetadata: channelID,
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				mrkdwnSection(fmt.Sprintf("*Configure notifications for:* <#%s>", channelID)),
				slack.NewDividerBlock(),
				mrkdwnSection("Select the notifications you want to receive in this channel:"),
				input,
			},
		},
	}
}
