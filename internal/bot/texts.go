package bot

const (
	textManagerConsent = "Здравствуйте! Я помогу найти кандидатов на вашу вакансию на hh.ru.\n\n" +
		"Для работы мне нужно ваше согласие на обработку персональных данных. Согласны?"
	textApplicantConsent = "Здравствуйте! Это бот компании, в которую вы откликнулись на hh.ru.\n\n" +
		"Чтобы продолжить, дайте согласие на обработку персональных данных."
	textPrivacyRequired = "Без согласия на обработку персональных данных продолжить нельзя. " +
		"Если передумаете, отправьте /start."

	textAuthLink        = "Авторизуйтесь на hh.ru как работодатель, чтобы я мог видеть ваши вакансии и отклики."
	textAuthButton      = "Войти через hh.ru"
	textAskVacancy      = "Выберите вакансию, по которой будем искать кандидатов:"
	textNoVacancies     = "У вас нет открытых вакансий на hh.ru. Опубликуйте вакансию и отправьте /start."
	textAskVideo        = "Хотите записать короткое видео о вакансии? Мы покажем его кандидатам."
	textRequestVideo    = "Пришлите видео или кружок. Длительность до 2 минут."
	textAskVideoConfirm = "Видео получено. Сохраняем его?"
	textAnalyzing       = "Анализирую вакансию и составляю критерии отбора. Это займёт пару минут."
	textWaitCriteria    = "Критерии отбора ещё готовятся. Я пришлю их, как только закончу."
	textCriteria        = "Критерии отбора для вакансии «%s»:\n\n%s\n\nВсё верно?"
	textAskFeedback     = "Напишите, что поправить в критериях."
	textSourcing        = "Отлично! Начинаю разбирать отклики. Подходящих кандидатов пришлю сюда."
	textInvited         = "Передал администратору, с кандидатом свяжутся для интервью."
	textInviteButton    = "Пригласить на интервью"
	textSomethingFailed = "Что-то пошло не так. Попробуйте ещё раз чуть позже."

	textApplicantNoLink  = "Откройте бота по ссылке из сообщения на hh.ru."
	textApplicantBadLink = "Ссылка недействительна. Откройте бота по ссылке из сообщения на hh.ru."
	textApplicantBound   = "Эта ссылка уже использована другим аккаунтом Telegram."
	textManagerVideo     = "Посмотрите видео от нанимающего менеджера."
	textApplicantVideo   = "Запишите короткое видео о себе: опыт, чем хотите заниматься и почему эта вакансия. " +
		"Подойдёт видео или кружок до 2 минут."
	textApplicantGoodbye = "Спасибо! Видео отправлено менеджеру. Если ваша кандидатура подойдёт, с вами свяжутся."

	buttonYes      = "Да"
	buttonNo       = "Нет"
	buttonAgree    = "Согласен"
	buttonDisagree = "Не согласен"
	buttonSave     = "Сохранить"
	buttonRerecord = "Перезаписать"
	buttonCorrect  = "Всё верно"
	buttonFix      = "Поправить"
)
