package remind

import "tg-dayplan-bot/internal/domain"

// Allowed решает, можно ли отправлять пользователю уведомления данного класса.
// Отсутствие записи настроек означает «всё включено», а не запрет.
// Функция чистая, побочных эффектов нет.
func Allowed(prefs *domain.Prefs, class domain.NotificationClass) bool {
	if prefs == nil {
		defaults := domain.DefaultPrefs(0)
		prefs = &defaults
	}
	switch class {
	case domain.ClassWork, domain.ClassPlan:
		return prefs.RemindersEnabled
	case domain.ClassDaily:
		return prefs.NotificationsEnabled
	case domain.ClassMetric:
		return prefs.MetricTrackingEnabled
	}
	return false
}
