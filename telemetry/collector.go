package telemetry

import (
	"fmt"
	"os"
	"sync"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxWriteAttempts = 3

// LogFileCollector appends classification and step records to a JSON
// log file through a bounded worker. Records are dropped when the
// buffer is full rather than blocking a step.
type LogFileCollector struct {
	fileName string
	log      *zap.Logger
	worker   *util.Worker
	metrics  *Metrics
}

func NewLogFileCollector(fileName string, capacity int, metrics *Metrics, wg *sync.WaitGroup) (*LogFileCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel)
	collector := &LogFileCollector{
		fileName: fileName,
		log:      zap.New(core),
		metrics:  metrics,
	}
	collector.worker = util.NewWorker("telemetry-collector", wg, collector.write, capacity)
	collector.worker.Start()
	return collector, nil
}

func (lc *LogFileCollector) RecordClassification(result model.Classification) {
	if lc.metrics != nil {
		lc.metrics.Classifications.WithLabelValues(result.Method, result.Intent).Inc()
	}
	if !lc.worker.TrySend(result) {
		logger.Warn("telemetry buffer full, dropping classification record")
	}
}

func (lc *LogFileCollector) RecordStep(outcome model.StepOutcome) {
	if lc.metrics != nil {
		lc.metrics.Steps.WithLabelValues(outcome.FlowId, string(outcome.Status)).Inc()
	}
	if !lc.worker.TrySend(outcome) {
		logger.Warn("telemetry buffer full, dropping step record")
	}
}

func (lc *LogFileCollector) write(task util.Task) error {
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = lc.writeOnce(task)
		if err == nil {
			return nil
		}
	}
	return err
}

func (lc *LogFileCollector) writeOnce(task util.Task) error {
	switch record := task.(type) {
	case model.Classification:
		lc.log.Info("classification",
			zap.String("intent", record.Intent),
			zap.Float64("confidence", record.Confidence),
			zap.String("method", record.Method),
			zap.Any("entities", record.Entities))
	case model.StepOutcome:
		lc.log.Info("step",
			zap.String("runId", record.RunId),
			zap.String("flowId", record.FlowId),
			zap.String("sessionId", record.SessionId),
			zap.String("from", record.FromState),
			zap.String("to", record.ToState),
			zap.String("event", record.Event),
			zap.String("status", string(record.Status)),
			zap.String("error", record.Error))
	default:
		return fmt.Errorf("unknown telemetry record type %T", task)
	}
	return lc.log.Sync()
}

func (lc *LogFileCollector) Stop() {
	lc.worker.Stop()
}
