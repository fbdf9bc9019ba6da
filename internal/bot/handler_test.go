package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnlen7/teacher-sarah/internal/ai"
	"github.com/johnlen7/teacher-sarah/internal/cache"
	"github.com/johnlen7/teacher-sarah/internal/domain"
	"github.com/johnlen7/teacher-sarah/internal/metrics"
	"github.com/johnlen7/teacher-sarah/internal/policy"
	"github.com/johnlen7/teacher-sarah/internal/repository"
	"github.com/johnlen7/teacher-sarah/internal/tutor"
)

type stubChatClient struct {
	reply string
}

func (s *stubChatClient) Chat(context.Context, ai.ChatRequest) (ai.ChatResult, error) {
	return ai.ChatResult{Text: s.reply, ModelID: "stub-model"}, nil
}

func (s *stubChatClient) Available() bool { return true }

type stubTranscriber struct {
	text  string
	audio []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	s.audio = audio
	return s.text, nil
}

func (s *stubTranscriber) Available() bool { return true }

type stubSynthesizer struct {
	path string
}

func (s *stubSynthesizer) Synthesize(context.Context, string) (string, error) {
	return s.path, nil
}

func (s *stubSynthesizer) Available() bool { return s.path != "" }

func newTestHandler(repo repository.StudentsRepository, reply string) (*Handler, *metrics.Collector) {
	tutorService := tutor.NewService(
		&stubChatClient{reply: reply},
		ai.NewModelRouter(ai.ModelRouterConfig{}),
		cache.NewMemoryStore(cache.MemoryConfig{}),
		tutor.Config{},
	)
	collector := metrics.NewCollector()
	handler := NewHandler(
		repo,
		tutorService,
		&stubTranscriber{text: "hello how are you"},
		&stubSynthesizer{path: "/tmp/speech_test.mp3"},
		policy.NewValidator(policy.ValidatorConfig{}),
		collector,
		HandlerConfig{},
	)
	return handler, collector
}

func TestProcessTextEvent(t *testing.T) {
	repo := repository.NewMemoryStudentsRepository()
	handler, collector := newTestHandler(repo, "Great question! Let me explain.")

	reply, err := handler.Process(context.Background(), domain.InboundEvent{
		EventID: "evt-1",
		ChatID:  10,
		UserID:  10,
		Kind:    domain.EventKindText,
		Text:    "  how do I use present perfect? ",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.HasPrefix(reply.EnglishOnly, "Great question!") {
		t.Errorf("reply = %q", reply.EnglishOnly)
	}

	user, err := repo.GetUser(context.Background(), 10)
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.EnglishLevel != domain.DefaultEnglishLevel {
		t.Errorf("level = %q", user.EnglishLevel)
	}

	history, _ := repo.RecentMessages(context.Background(), 10, 10)
	if len(history) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(history))
	}
	if history[0].Author != domain.MessageAuthorUser || history[0].Content != "how do I use present perfect?" {
		t.Errorf("user turn = %+v", history[0])
	}
	if history[1].Author != domain.MessageAuthorSarah {
		t.Errorf("reply turn author = %q", history[1].Author)
	}

	stats := collector.Stats()
	if stats.TotalMessages != 1 || stats.TotalVoice != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProcessVoiceEvent(t *testing.T) {
	audioServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ogg-audio-bytes"))
	}))
	defer audioServer.Close()

	repo := repository.NewMemoryStudentsRepository()
	handler, collector := newTestHandler(repo, "You said it perfectly!")

	reply, err := handler.Process(context.Background(), domain.InboundEvent{
		EventID:  "evt-2",
		ChatID:   11,
		UserID:   11,
		Kind:     domain.EventKindVoice,
		AudioURL: audioServer.URL + "/audio.ogg",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if reply.Transcription != "hello how are you" {
		t.Errorf("transcription = %q", reply.Transcription)
	}
	if reply.AudioPath != "/tmp/speech_test.mp3" {
		t.Errorf("audio path = %q", reply.AudioPath)
	}

	history, _ := repo.RecentMessages(context.Background(), 11, 10)
	if len(history) != 2 || !history[0].IsVoice {
		t.Fatalf("history = %+v", history)
	}

	stats := collector.Stats()
	if stats.TotalVoice != 1 {
		t.Errorf("voice count = %d, want 1", stats.TotalVoice)
	}
}

func TestProcessRejectsInvalidText(t *testing.T) {
	repo := repository.NewMemoryStudentsRepository()
	handler, collector := newTestHandler(repo, "unused")

	if _, err := handler.Process(context.Background(), domain.InboundEvent{
		ChatID: 12,
		UserID: 12,
		Kind:   domain.EventKindText,
		Text:   "<script>alert(1)</script>",
	}); err == nil {
		t.Fatal("blocked content accepted")
	}

	history, _ := repo.RecentMessages(context.Background(), 12, 10)
	if len(history) != 0 {
		t.Errorf("rejected message persisted: %+v", history)
	}
	if collector.Stats().TotalErrors != 1 {
		t.Errorf("error not tracked")
	}
}

func TestProcessKeepsExistingLevel(t *testing.T) {
	repo := repository.NewMemoryStudentsRepository()
	_ = repo.UpsertUser(context.Background(), &domain.User{ChatID: 13, EnglishLevel: "C2"})
	handler, _ := newTestHandler(repo, "ok")

	if _, err := handler.Process(context.Background(), domain.InboundEvent{
		ChatID: 13,
		UserID: 13,
		Kind:   domain.EventKindText,
		Text:   "hello",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}

	user, _ := repo.GetUser(context.Background(), 13)
	if user.EnglishLevel != "C2" {
		t.Errorf("level = %q, want C2", user.EnglishLevel)
	}
}
