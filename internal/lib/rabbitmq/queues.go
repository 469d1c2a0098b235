package rabbitmq

// Ключи маршрутизации событий коучинга.
const (
	RoutingKeyInvite = "invite"
	RoutingKeyStatus = "status"
)

// Очереди, которые читает сервис sender.
const (
	QueueInvite = "coaching.invite"
	QueueStatus = "coaching.status"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// CoachingQueues возвращает очереди событий коучинга.
func CoachingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueInvite, RoutingKey: RoutingKeyInvite},
		{QueueName: QueueStatus, RoutingKey: RoutingKeyStatus},
	}
}
