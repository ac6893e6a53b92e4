package remind

import (
	"testing"

	"tg-dayplan-bot/internal/domain"
)

func TestAllowedDefaultsWhenPrefsMissing(t *testing.T) {
	for _, class := range []domain.NotificationClass{domain.ClassWork, domain.ClassPlan, domain.ClassDaily, domain.ClassMetric} {
		if !Allowed(nil, class) {
			t.Fatalf("отсутствие настроек должно означать «включено», класс %s", class)
		}
	}
}

func TestAllowedRespectsFlags(t *testing.T) {
	prefs := &domain.Prefs{
		RemindersEnabled:      false,
		NotificationsEnabled:  true,
		MetricTrackingEnabled: false,
	}

	if Allowed(prefs, domain.ClassWork) {
		t.Fatalf("рабочие напоминания выключены, но гейт пропустил")
	}
	if Allowed(prefs, domain.ClassPlan) {
		t.Fatalf("напоминания по плану выключены, но гейт пропустил")
	}
	if !Allowed(prefs, domain.ClassDaily) {
		t.Fatalf("ежедневные чек-ины включены, но гейт не пропустил")
	}
	if Allowed(prefs, domain.ClassMetric) {
		t.Fatalf("трекинг метрик выключен, но гейт пропустил")
	}
}

func TestAllowedUnknownClass(t *testing.T) {
	prefs := &domain.Prefs{RemindersEnabled: true, NotificationsEnabled: true, MetricTrackingEnabled: true}
	if Allowed(prefs, domain.NotificationClass("unknown")) {
		t.Fatalf("неизвестный класс не должен проходить гейт")
	}
}
