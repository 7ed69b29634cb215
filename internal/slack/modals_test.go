package slackbot

import (
	"testing"

	"github.com/slack-go/slack"
)

func TestNewConfigModal(t *testing.T) {
	modal := NewConfigModal("C123")

	if modal.CallbackID != ConfigModalCallbackID {
		t.Errorf("unexpected callback ID %q", modal.CallbackID)
	}
	if modal.PrivateMetadata != "C123" {
		t.Errorf("expected channel in private metadata, got %q", modal.PrivateMetadata)
	}

	var tokenBlock, hostBlock bool
	for _, block := range modal.Blocks.BlockSet {
		input, ok := block.(*slack.InputBlock)
		if !ok {
			continue
		}
		switch input.BlockID {
		case TokenBlockID:
			tokenBlock = true
		case HostBlockID:
			hostBlock = true
		}
	}
	if !tokenBlock {
		t.Error("expected token input block")
	}
	if !hostBlock {
		t.Error("expected host input block")
	}
}

func TestNewNotificationsModal(t *testing.T) {
	modal := NewNotificationsModal("C456", []string{NotificationDailySummary})

	if modal.CallbackID != NotificationsModalCallbackID {
		t.Errorf("unexpected callback ID %q", modal.CallbackID)
	}

	var checkboxes *slack.CheckboxGroupsBlockElement
	for _, block := range modal.Blocks.BlockSet {
		input, ok := block.(*slack.InputBlock)
		if !ok || input.BlockID != NotificationOptionsBlockID {
			continue
		}
		if !input.Optional {
			t.Error("expected notification input block to be optional")
		}
		checkboxes, _ = input.Element.(*slack.CheckboxGroupsBlockElement)
	}

	if checkboxes == nil {
		t.Fatal("expected checkbox element in notifications modal")
	}
	if len(checkboxes.Options) != 2 {
		t.Errorf("expected 2 notification options, got %d", len(checkboxes.Options))
	}
	if len(checkboxes.InitialOptions) != 1 || checkboxes.InitialOptions[0].Value != NotificationDailySummary {
		t.Errorf("expected daily_summary pre-checked, got %+v", checkboxes.InitialOptions)
	}
}

func TestNewNotificationsModalNoSubscriptions(t *testing.T) {
	modal := NewNotificationsModal("C456", nil)

	for _, block := range modal.Blocks.BlockSet {
		input, ok := block.(*slack.InputBlock)
		if !ok || input.BlockID != NotificationOptionsBlockID {
			continue
		}
		checkboxes, _ := input.Element.(*slack.CheckboxGroupsBlockElement)
		if checkboxes != nil && len(checkboxes.InitialOptions) != 0 {
			t.Errorf("expected no initial options, got %+v", checkboxes.InitialOptions)
		}
	}
}
