package app

import (
	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/orders"
)

// createOrchestrator создаёт оркестратор заказов с или без Kafka
// в зависимости от наличия producer.
func createOrchestrator(
	deps *Dependencies,
	cfg Config,
	kafkaProducer *kafka.Producer,
) orders.Orchestrator {
	var policy domain.TransitionPolicy
	if cfg.StrictTransitions {
		policy = domain.DefaultTransitionPolicy()
	}

	svcCfg := orders.Config{
		Currency: cfg.Currency,
		Policy:   policy,
	}

	if kafkaProducer != nil {
		return orders.NewOrchestratorWithKafka(
			deps.Repo,
			deps.Catalog,
			deps.Payments,
			svcCfg,
			kafkaProducer,
			deps.Logger,
		)
	}

	return orders.NewOrchestrator(
		deps.Repo,
		deps.Catalog,
		deps.Payments,
		svcCfg,
		deps.Logger,
	)
}
