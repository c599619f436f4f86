package shop

// Reply keyboard buttons. Input is matched against them by exact string equality.
const (
	BtnHome    = "🏠 На главную"
	BtnConfirm = "✅ Подтвердить"
	BtnCancel  = "❌ Отменить"

	BtnAdminOrders        = "📋 Посмотреть заказы"
	BtnAdminConfirmPay    = "✅ Подтвердить платёж"
	BtnAdminCancelOrder   = "❌ Отменить заказ"
	BtnAdminAddProduct    = "➕ Добавить товар"
	BtnAdminDeleteProduct = "➖ Удалить товар"
	BtnAdminExport        = "📤 Выгрузить заказы"
)

// Commands offered on the main menu keyboard.
const (
	CmdStart = "/start"
	CmdAdmin = "/admin"
)

const (
	textChooseCity     = "🏙 Выберите ваш город:"
	textChooseDistrict = "📍 Выберите ваш район:"
	textChooseProduct  = "📦 Выберите продукт:"
	textChoosePayment  = "💳 Выберите способ оплаты:"
	textConfirmOrder   = "✅ Подтвердите ваш заказ:\n\n📦 Продукт: %s\n💵 Цена: %d ₽"

	textCityNotFound     = "❌ Город не найден. Попробуйте снова."
	textDistrictNotFound = "❌ Район не найден. Попробуйте снова."
	textProductNotFound  = "❌ Продукт не найден. Попробуйте снова."
	textMethodNotFound   = "❌ Неверный способ оплаты. Попробуйте снова."
	textUnknown          = "❓ Неизвестная команда. Используйте кнопки ниже."

	textOrderPlaced   = "✅ Ваш заказ №%d подтверждён. Спасибо за покупку!"
	textAwaitingAdmin = "🔔 Ваш заказ находится на подтверждении администратора."
	textOrderCanceled = "❌ Ваш заказ отменён."
	textMainMenu      = "🏠 Вы в главном меню. Выберите действие:"
	textInternalError = "⚠️ Что-то пошло не так. Попробуйте ещё раз позже."

	textAdminMenu   = "🔧 Админ-меню:"
	textAdminDenied = "❌ У вас нет прав доступа к админ-меню."
	textOrdersTitle = "📑 Список заказов:"
	textNoOrders    = "❌ Нет заказов."
	textOrderLine   = "🆔 %d - %s - %s - %d ₽"
	textNewOrder    = "🆕 Новый заказ №%d\n📍 %s, %s\n📦 %s - %d ₽\n💳 %s\n👤 %d"

	textAskConfirmID = "🔑 Введите ID заказа для подтверждения."
	textAskCancelID  = "🔑 Введите ID заказа для отмены."
	textAskAdd       = "🔑 Введите название товара, цену и город через запятую."
	textAskDelete    = "🔑 Введите название товара для удаления."

	textBadOrderID       = "❌ Пожалуйста, введите корректный ID заказа."
	textOrderIDNotFound  = "❌ Заказ с таким ID не найден."
	textPaymentConfirmed = "✅ Платёж для заказа №%d подтверждён."
	textPaymentCanceled  = "✅ Платёж для заказа №%d отменён."
	textAlreadyFinal     = "⚠️ Заказ №%d уже в статусе «%s». Статус не изменён."
	textOwnerPaid        = "✅ Ваш заказ №%d подтверждён. Ожидайте доставки."
	textOwnerCanceled    = "❌ Ваш заказ №%d отменён администратором."

	textProductAdded     = "✅ Товар %s добавлен в %s."
	textProductDeleted   = "✅ Товар %s удалён из %s."
	textProductMissing   = "❌ Товар не найден."
	textProductDuplicate = "❌ Товар %s уже есть в %s."
	textBadProductLine   = "❌ Ошибка в формате. Пожалуйста, введите название товара, цену и город через запятую."
	textSaveFailed       = "⚠️ Изменение применено, но каталог не удалось сохранить на диск."

	textProductNameTooLong = "❌ Название товара слишком длинное: не более %d символов."

	textMyBonus         = "💰 Ваши бонусы: %d бонусов."
	textMyOrdersTitle   = "📑 Ваши заказы:"
	textNoMyOrders      = "❌ У вас нет заказов."
	textReferralNew     = "🎁 Ваш реферальный код: %d"
	textReferral        = "Ваш реферальный код: %d"
	textPaymentStatus   = "📊 Статус оплаты для заказа №%d: %s"
	textOrderNotFound   = "❌ Заказ не найден."
	textPaymentUsage    = "ℹ️ Использование: /payment_status <ID заказа>"
	textExportCaption   = "📤 Выгрузка заказов: %d шт."
	textPaymentDetails  = "🔑 %s\n\n🆔 %s: %s\n📦 %s: %s\n💵 %s: %s\n💳 %s: %s\n\n💼 %s: %s"
	textDetailsTitle    = "Реквизиты для оплаты:"
	textDetailsOrderID  = "Номер заказа"
	textDetailsProduct  = "Товар"
	textDetailsSum      = "Сумма"
	textDetailsMethod   = "Метод оплаты"
	textDetailsRequisit = "Реквизиты"
)

const (
	// maxMessageLen keeps list replies under the Telegram limit of 4096
	// characters. Lengths are counted in bytes, which never undercounts.
	maxMessageLen = 4000
	// maxProductNameLen bounds names added from the admin menu.
	maxProductNameLen = 64
)
