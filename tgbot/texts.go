package tgbot

import tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Menu button labels. Idle messages are routed by exact label match.
const (
	btnTasks     = "🧠 Мои задачи"
	btnAI        = "🤖 ИИ агент"
	btnAdd       = "➕ Добавить задачу"
	btnActive    = "🚧 Незавершённые задачи"
	btnCompleted = "✅ Завершённые задачи"
	btnEdit      = "✏️ Редактировать задачу"
	btnComplete  = "☑️ Завершить задачу"
	btnDelete    = "🗑 Удалить задачу"
	btnBack      = "⬅️ Назад"
)

const (
	txtMainMenuHint   = "💡 Используй меню для управления задачами."
	txtTasksMenu      = "📋 Меню задач:"
	txtEnterTitle     = "✏️ Введи название задачи:"
	txtEnterDate      = "📅 Введи дату (пример: 12.11.2025):"
	txtEnterTime      = "⏰ Теперь введи время (пример: 14:30):"
	txtEnterRemind    = "🔔 Включить напоминание? (Да/Нет)"
	txtEmptyTitle     = "❌ Название не может быть пустым. Введи название задачи:"
	txtBadDate        = "❌ Неверный формат даты. Пример: 12.11.2025"
	txtBadTime        = "❌ Неверный формат времени. Пример: 14:30"
	txtNoActiveTasks  = "Нет активных задач."
	txtNoDoneTasks    = "Нет выполненных задач."
	txtActiveHeader   = "🔎 <b>Незавершённые:</b>\n\n"
	txtDoneHeader     = "📦 <b>Выполненные:</b>\n\n"
	txtEnterTaskID    = "Введи ID задачи:"
	txtBadTaskID      = "❌ Неверный ID. Попробуй снова."
	txtChooseField    = "Что изменить?\n1 — Название\n2 — Дата/время\n3 — Напоминание"
	txtChooseRetry    = "Напиши 1, 2 или 3."
	txtEnterNewTitle  = "Введи новое название:"
	txtEnterNewDate   = "Введи новую дату (12.11.2025):"
	txtEnterNewTime   = "Теперь время (14:30):"
	txtTitleUpdated   = "Название обновлено."
	txtDueUpdated     = "Дата/время обновлены."
	txtRemindUpdated  = "Напоминание обновлено."
	txtTaskGone       = "❌ Задача уже удалена."
	txtTaskDone       = "Задача завершена."
	txtTaskDeleted    = "Задача удалена."
	txtCancelled      = "Действие отменено."
	txtDatabaseError  = "⚠ Не получилось обратиться к базе. Попробуй ещё раз."
	txtUnknownCommand = "Я не знаю такой команды. Используй меню 👇"
	txtAIWelcome      = "🤖 Режим ИИ-агента. Напиши, что сделать с задачами, или задай вопрос.\n«⬅️ Назад» — выход."
	txtAIDisabled     = "🤖 ИИ-агент не настроен."
	txtAIError        = "⚠ Произошла ошибка при обращении к ИИ."
	txtAINoneMatched  = "Не нашёл задач по этим словам."

	fmtWelcome     = "👋 Привет, <b>%s</b>!\n\nЯ — интеллектуальный помощник <b>МойРитм</b>.\nИспользуй меню ниже 👇"
	fmtTaskCreated = "✅ Задача создана!\n<b>%s</b>\nСрок: %s"
	fmtTaskLine    = "• <b>%d</b> — %s (%s)\n"
	fmtDoneLine    = "• <b>%d</b> — %s\n"
	fmtAIBadDate   = "❌ Не удалось разобрать дату/время из ответа: %q %q"
	fmtAIDeleted   = "🗑 Удалено задач: %d"
)

var (
	mainMenu = tg.NewReplyKeyboard(
		tg.NewKeyboardButtonRow(tg.NewKeyboardButton(btnTasks), tg.NewKeyboardButton(btnAI)),
	)

	tasksMenu = tg.NewReplyKeyboard(
		tg.NewKeyboardButtonRow(tg.NewKeyboardButton(btnAdd)),
		tg.NewKeyboardButtonRow(tg.NewKeyboardButton(btnActive), tg.NewKeyboardButton(btnCompleted)),
		tg.NewKeyboardButtonRow(tg.NewKeyboardButton(btnEdit), tg.NewKeyboardButton(btnComplete)),
		tg.NewKeyboardButtonRow(tg.NewKeyboardButton(btnDelete), tg.NewKeyboardButton(btnBack)),
	)

	backMenu = tg.NewReplyKeyboard(
		tg.NewKeyboardButtonRow(tg.NewKeyboardButton(btnBack)),
	)
)
