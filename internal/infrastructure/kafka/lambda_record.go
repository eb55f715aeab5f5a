package kafka

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DecodeLambdaRecord extracts the key and value of a record delivered by a
// Lambda Kafka event source, which base64-encodes both.
func DecodeLambdaRecord(record events.KafkaRecord) (key, value []byte, err error) {
	if record.Key != "" {
		if key, err = base64.StdEncoding.DecodeString(record.Key); err != nil {
			return nil, nil, errors.Wrapf(err, "decode key at %s/%d/%d", record.Topic, record.Partition, record.Offset)
		}
	}
	if value, err = base64.StdEncoding.DecodeString(record.Value); err != nil {
		return nil, nil, errors.Wrapf(err, "decode value at %s/%d/%d", record.Topic, record.Partition, record.Offset)
	}
	return key, value, nil
}

// ConsumeLambdaEvent feeds every record of a Lambda Kafka event to handler and
// returns how many failed. Failures are reported, not retried, matching
// Consumer.
func ConsumeLambdaEvent(ctx context.Context, event events.KafkaEvent, handler MessageHandler, log logrus.FieldLogger) (processed, failed int) {
	for _, records := range event.Records {
		for _, record := range records {
			processed++
			entry := log.WithFields(logrus.Fields{
				"topic":     record.Topic,
				"partition": record.Partition,
				"offset":    record.Offset,
			})
			key, value, err := DecodeLambdaRecord(record)
			if err != nil {
				entry.WithError(err).Error("decode record")
				failed++
				continue
			}
			if err := handler(ctx, key, value); err != nil {
				entry.WithError(err).Error("handle message")
				failed++
			}
		}
	}
	return processed, failed
}
