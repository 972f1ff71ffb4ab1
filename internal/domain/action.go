package domain

// ActionID — идентификатор действия из закрытого каталога.
//
// Каталог статичен: новые действия добавляются только в коде, вместе
// с определением в catalog.NewRegistry(). Неизвестный ActionID — это
// ошибка конструирования, а не no-op во время выполнения.
type ActionID string

// Известные действия.
const (
	// ActionRecoverAbandonedCarts — письма покупателям с брошенными корзинами.
	ActionRecoverAbandonedCarts ActionID = "recover_abandoned_carts"

	// ActionSendPromoCampaign — промо-рассылка по подписчикам.
	ActionSendPromoCampaign ActionID = "send_promo_campaign"

	// ActionOnboardNewSignups — приветственная серия для новых регистраций.
	ActionOnboardNewSignups ActionID = "onboard_new_signups"

	// ActionWinbackInactive — возврат неактивных клиентов.
	ActionWinbackInactive ActionID = "winback_inactive_customers"

	// ActionSendWeeklyDigest — еженедельный дайджест, создаётся
	// планировщиком, а не пользователем.
	ActionSendWeeklyDigest ActionID = "send_weekly_digest"

	// ActionViewRevenueReport — навигационное действие (открыть отчёт).
	ActionViewRevenueReport ActionID = "view_revenue_report"

	// ActionOpenIntegrations — навигационное действие (настройки интеграций).
	ActionOpenIntegrations ActionID = "open_integrations"
)

// ActionKind — вид действия.
type ActionKind string

const (
	// KindWorkflow — исполняемое действие: создаёт run с рассылкой.
	KindWorkflow ActionKind = "workflow"

	// KindNavigate — навигация в UI, run не создаётся.
	KindNavigate ActionKind = "navigate"
)

// RiskLevel — уровень риска действия.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RecipientSource — источник выборки получателей.
type RecipientSource string

const (
	// SourceAbandonedCarts — email'ы из событий cart_abandoned без
	// последующего заказа.
	SourceAbandonedCarts RecipientSource = "abandoned_carts"

	// SourceSubscribers — активные подписчики рассылки.
	SourceSubscribers RecipientSource = "subscribers"

	// SourceRecentSignups — зарегистрировавшиеся за последние дни.
	SourceRecentSignups RecipientSource = "recent_signups"

	// SourceInactiveCustomers — подписчики без недавней активности.
	SourceInactiveCustomers RecipientSource = "inactive_customers"
)

// Precondition — типизированный предикат доступности действия.
//
// Закрытое множество вариантов: HasIntegration, HasEvents,
// HasRecipients. Evaluator интерпретирует варианты через type switch —
// строковой диспетчеризации нет намеренно.
type Precondition interface {
	precondition()
}

// HasIntegration — у проекта подключена интеграция указанного вида.
type HasIntegration struct {
	// Kind — вид интеграции: "shop", "email_provider", "analytics".
	Kind string
}

// HasEvents — за окно наблюдения накопилось достаточно бизнес-событий.
type HasEvents struct {
	// EventType — тип события (например "cart_abandoned").
	EventType string

	// MinCount — минимальное количество событий.
	MinCount int

	// WindowDays — глубина окна в днях.
	WindowDays int
}

// HasRecipients — выборка получателей для источника непуста.
type HasRecipients struct {
	Source RecipientSource
}

func (HasIntegration) precondition() {}
func (HasEvents) precondition()      {}
func (HasRecipients) precondition()  {}

// OutcomeModel — модель атрибуции бизнес-результата действия.
type OutcomeModel struct {
	// Enabled — считается ли для действия outcome вообще.
	// Навигационные действия и дайджесты атрибуцию не получают.
	Enabled bool

	// Name — имя модели, попадает в outcome.model ("last_touch").
	Name string

	// WindowHours — окно после completedAt, в котором события
	// засчитываются этому run.
	WindowHours int

	// MetricEventType — тип события-конверсии ("order_completed",
	// "subscription_started").
	MetricEventType string
}

// ActionDefinition — неизменяемое определение действия в каталоге.
type ActionDefinition struct {
	ID ActionID

	Kind ActionKind

	Risk RiskLevel

	// ConfirmRequired — действие требует явного подтверждения;
	// для таких действий невыполненные preconditions блокируют
	// создание run.
	ConfirmRequired bool

	// SupportsPreview — для действия доступен preview получателей.
	SupportsPreview bool

	// Source — источник получателей (только для kind=workflow).
	Source RecipientSource

	// Preconditions — условия доступности, все должны выполняться.
	Preconditions []Precondition

	// Outcome — модель атрибуции результата.
	Outcome OutcomeModel

	// DisabledReasonKey — ключ перевода причины недоступности.
	DisabledReasonKey string
}

// IsWorkflow возвращает true для исполняемых действий.
func (d *ActionDefinition) IsWorkflow() bool {
	return d.Kind == KindWorkflow
}
