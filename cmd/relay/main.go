// Command relay wires the ingestion, orchestration, recovery, and
// metrics components together and drives one utterance through the
// pipeline end to end. It is a wiring demo, not a server:
// the relay takes no network input here and exposes no API of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lokutor-ai/lokutor-relay/pkg/audio"
	"github.com/lokutor-ai/lokutor-relay/pkg/config"
	"github.com/lokutor-ai/lokutor-relay/pkg/engines/mt"
	"github.com/lokutor-ai/lokutor-relay/pkg/engines/stt"
	"github.com/lokutor-ai/lokutor-relay/pkg/engines/tts"
	"github.com/lokutor-ai/lokutor-relay/pkg/logging"
	"github.com/lokutor-ai/lokutor-relay/pkg/metrics"
	"github.com/lokutor-ai/lokutor-relay/pkg/orchestrator"
	"github.com/lokutor-ai/lokutor-relay/pkg/recovery"
)

func main() {
	log, err := logging.NewProductionZapLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	router := metrics.NewRouter()
	router.EnablePrometheus(prometheus.DefaultRegisterer, "lokutor_relay")

	orch := orchestrator.New(cfg, log)
	defer orch.Close()

	if key := config.STTAPIKey(); key != "" {
		orch.SetSTTEngine(stt.New(key, ""))
	}
	if key := config.MTAPIKey(); key != "" {
		orch.SetMTEngine(mt.New(key, ""))
	}
	if key := config.TTSAPIKey(); key != "" {
		orch.SetTTSEngine(tts.New(key, "api.lokutor.com"))
	}

	recoveryCfg := recovery.DefaultConfigs()
	recoveryController := recovery.New(orch, recoveryCfg, func(utteranceID uint64, message string, final bool) {
		log.Info("recovery notification", "utterance_id", utteranceID, "message", message, "final", final)
	}, log)
	defer recoveryController.Close()
	orch.SetRecoveryHook(recoveryController.Attempt)

	orch.OnStateChange(func(u orchestrator.Utterance, from, to orchestrator.State) {
		log.Debug("utterance state change", "id", u.ID, "from", from, "to", to)
	})
	orch.OnComplete(func(u orchestrator.Utterance) {
		log.Info("utterance complete", "id", u.ID, "transcript", u.Transcript, "translation", u.Translation)
		router.Record(metrics.Sample{
			ModelID:      "default",
			LanguagePair: u.SourceLanguage + "-" + u.TargetLanguage,
			Confidence:   u.TranscriptConfidence,
			Success:      true,
		})
	})
	orch.OnError(func(u orchestrator.Utterance, message string) {
		log.Warn("utterance error", "id", u.ID, "message", message)
	})

	sessionID := uuid.NewString()
	ingestFormat := audio.DefaultFormat()
	ingestion, err := audio.NewManager(ingestFormat, 1<<20, log)
	if err != nil {
		log.Error("invalid audio format", "error", err)
		os.Exit(1)
	}
	session := ingestion.Open(sessionID)

	id, err := orch.Create(sessionID)
	if err != nil {
		log.Error("failed to create utterance", "error", err)
		os.Exit(1)
	}
	orch.SetLanguageConfig(id, "en", "es", "")

	silentPCM := make([]byte, ingestFormat.ChunkSizeBytes())
	if _, code := session.Ingest(silentPCM); code != audio.ErrNone {
		log.Warn("ingestion reported an error", "code", code.String())
	}
	orch.AddAudio(id, session.Buffer().AllSamples())
	orch.Process(id)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
	}

	fmt.Println(router.GenerateReport())
}
