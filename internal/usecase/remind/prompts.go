package remind

import (
	"math/rand"
	"sync"
)

// workPrompts — библиотека рабочих напоминаний-разминок. Выбор равномерно
// случайный на каждую отправку, повторы допустимы.
var workPrompts = []string{
	"Время размяться! Встаньте и потянитесь пару минут.",
	"Сделайте перерыв: 10 приседаний вернут бодрость.",
	"Отведите взгляд от экрана и посмотрите вдаль 20 секунд.",
	"Пройдитесь по комнате и выпейте стакан воды.",
	"Разомните шею и плечи — экран никуда не денется.",
	"Пять глубоких вдохов у открытого окна творят чудеса.",
	"Минутка для спины: встаньте и сделайте наклоны в стороны.",
}

// Picker выбирает индекс подсказки из библиотеки размера n.
// Вынесен в зависимость, чтобы в тестах выбор был детерминированным.
type Picker func(n int) int

// NewRandPicker возвращает Picker на базе math/rand с заданным зерном.
// Вызовы могут идти из пула воркеров, поэтому генератор под мьютексом.
func NewRandPicker(seed int64) Picker {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return rng.Intn(n)
	}
}

// PickPrompt выбирает текст рабочего напоминания.
func PickPrompt(pick Picker) string {
	return workPrompts[pick(len(workPrompts))]
}
