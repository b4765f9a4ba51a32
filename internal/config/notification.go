package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MessageTemplate is a text/template pair used to compose one outbound e-mail.
type MessageTemplate struct {
	Subject string `mapstructure:"subject"`
	Body    string `mapstructure:"body"`
}

type NotificationTemplates struct {
	WorkCompletedEmployee MessageTemplate `mapstructure:"work_completed_employee"`
	WorkCompletedCompany  MessageTemplate `mapstructure:"work_completed_company"`
	WorkUpdated           MessageTemplate `mapstructure:"work_updated"`
	WorkDeclined          MessageTemplate `mapstructure:"work_declined"`
	InvoiceCreated        MessageTemplate `mapstructure:"invoice_created"`
}

func DefaultNotificationTemplates() NotificationTemplates {
	return NotificationTemplates{
		WorkCompletedEmployee: MessageTemplate{
			Subject: "Work Completed and Invoice Generated",
			Body:    "Hello {{.RecipientName}},\n\nYour work titled '{{.Title}}' has been completed. Please find the attached invoice for the work completed.",
		},
		WorkCompletedCompany: MessageTemplate{
			Subject: "Work Completed and Invoice Generated",
			Body:    "Hello,\n\nThe work titled '{{.Title}}' has been completed. Please find the attached invoice for the work completed.",
		},
		WorkUpdated: MessageTemplate{
			Subject: "Your work has been updated",
			Body:    "Hello {{.RecipientName}},\n\nYour work titled '{{.Title}}' has been updated. Please check the system for more details.",
		},
		WorkDeclined: MessageTemplate{
			Subject: "Your Work Request Has Been Declined",
			Body:    "Dear Recipient,\n\nYour work request with ID {{.WorkOrderID}} has been declined.\n\nMessage: {{.Message}}",
		},
		InvoiceCreated: MessageTemplate{
			Subject: "Invoice {{.InvoiceNumber}} Created",
			Body: "Hello {{.RecipientName}},\n\nAn invoice has been created for your work.\n\n" +
				"Total Amount: {{.TotalAmount}}\nTaxes: {{.TaxAmount}}\nBase Amount: {{.BaseAmount}}\n" +
				"VAT: {{.VATAmount}}\nWithholding: {{.WithholdingAmount}}\nStamp Duty: {{.StampDutyAmount}}\n\n" +
				"Issue Date: {{.IssueDate}}",
		},
	}
}

// TemplateHolder serves the current notification templates and swaps them on file change.
type TemplateHolder struct {
	current atomic.Value // holds NotificationTemplates
}

func NewStaticTemplateHolder(t NotificationTemplates) *TemplateHolder {
	holder := &TemplateHolder{}
	holder.current.Store(t)
	return holder
}

func NewTemplateHolder(cfg Config) (*TemplateHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.Notification.TemplatesPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("notifications")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/workdesk")
		v.AddConfigPath(".")
	}

	defaults := DefaultNotificationTemplates()
	setTemplateDefaults(v, "notifications.work_completed_employee", defaults.WorkCompletedEmployee)
	setTemplateDefaults(v, "notifications.work_completed_company", defaults.WorkCompletedCompany)
	setTemplateDefaults(v, "notifications.work_updated", defaults.WorkUpdated)
	setTemplateDefaults(v, "notifications.work_declined", defaults.WorkDeclined)
	setTemplateDefaults(v, "notifications.invoice_created", defaults.InvoiceCreated)

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		loaded = false
	}

	templates, err := unmarshalTemplates(v)
	if err != nil {
		return nil, err
	}
	if err := validateTemplates(templates); err != nil {
		return nil, err
	}

	holder := NewStaticTemplateHolder(templates)
	if !loaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalTemplates(v)
		if err != nil {
			zap.L().Warn("notification templates reload failed", zap.Error(err))
			return
		}
		if err := validateTemplates(updated); err != nil {
			zap.L().Warn("invalid notification templates ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("notification templates reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *TemplateHolder) Get() NotificationTemplates {
	if h == nil {
		return DefaultNotificationTemplates()
	}
	return h.current.Load().(NotificationTemplates)
}

// unmarshalTemplates goes through AllSettings so file values merge with per-key defaults.
func unmarshalTemplates(v *viper.Viper) (NotificationTemplates, error) {
	var wrapper struct {
		Notifications NotificationTemplates `mapstructure:"notifications"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return NotificationTemplates{}, err
	}
	return wrapper.Notifications, nil
}

func setTemplateDefaults(v *viper.Viper, key string, t MessageTemplate) {
	v.SetDefault(key+".subject", t.Subject)
	v.SetDefault(key+".body", t.Body)
}

func validateTemplates(t NotificationTemplates) error {
	for _, tmpl := range []MessageTemplate{
		t.WorkCompletedEmployee,
		t.WorkCompletedCompany,
		t.WorkUpdated,
		t.WorkDeclined,
		t.InvoiceCreated,
	} {
		if strings.TrimSpace(tmpl.Subject) == "" {
			return errors.New("notification template subject cannot be empty")
		}
	}
	return nil
}
