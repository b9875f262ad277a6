package kafka

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-payments/internal/logger"
)

// EnsureTopicsExist creates the outcome topics if they don't already exist,
// so a fresh broker works without manual setup.
func EnsureTopicsExist(brokers, topics []string, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("TOPIC_CREATED", topic, "ready")
		case strings.Contains(err.Error(), "already exists"):
			log.LogKafka("TOPIC_EXISTS", topic, "skipping")
		default:
			log.Error("KAFKA", "creating topic "+topic+": "+err.Error())
			// keep going, the remaining topics may still succeed
		}
	}

	// Give the broker a moment to settle the new topics
	time.Sleep(1 * time.Second)
	return nil
}
