package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/database"
	"github.com/stemsi/exstem-lifecycle/internal/logger"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

// seed-exam creates a published demo exam with a handful of questions. The
// running server picks up its boundaries on the next reconcile sweep.
func main() {
	var (
		title        string
		startsIn     time.Duration
		window       time.Duration
		duration     int
		registration bool
	)
	flag.StringVar(&title, "title", "Ujian Percobaan", "exam title")
	flag.DurationVar(&startsIn, "starts-in", 10*time.Minute, "time until the exam starts")
	flag.DurationVar(&window, "window", 2*time.Hour, "length of the exam window")
	flag.IntVar(&duration, "duration", 90, "session duration in minutes (0 uses the window length)")
	flag.BoolVar(&registration, "registration", false, "require registration, open from now until the exam starts")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	clock := clockwork.NewRealClock()
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	registrationRepo := repository.NewRegistrationRepository(pool)

	finalizer := service.NewSessionFinalizer(sessionRepo, questionRepo, nil, clock, nil, log)
	statusService := service.NewStatusService(examRepo, finalizer, nil, clock, nil, log)
	examService := service.NewExamService(examRepo, questionRepo, registrationRepo, statusService, nil, clock, log)

	now := clock.Now().UTC()
	start := now.Add(startsIn)
	exam := &model.Exam{
		Title:                title,
		RequiresRegistration: registration,
		ExamStart:            start,
		ExamEnd:              start.Add(window),
		DurationMinutes:      duration,
	}
	if registration {
		regStart, regEnd := now, start
		exam.RegistrationStart = &regStart
		exam.RegistrationEnd = &regEnd
	}

	if err := examService.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	questions, err := examService.AddQuestions(ctx, exam.ID, sampleQuestions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add questions")
	}

	published, err := examService.Publish(ctx, exam.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}

	fmt.Printf("Seeded exam %s (%q)\n", published.ID, published.Title)
	fmt.Printf("  status:   %s\n", published.Status)
	fmt.Printf("  window:   %s .. %s\n", published.ExamStart.Format(time.RFC3339), published.ExamEnd.Format(time.RFC3339))
	fmt.Printf("  duration: %s per session\n", published.SessionDuration())
	fmt.Printf("  questions: %d\n", len(questions))
}

var sampleQuestions = []model.AddQuestionRequest{
	{
		Text:            "Berapakah hasil dari 12 x 12?",
		Options:         []string{"124", "144", "132", "142", "154"},
		CorrectOptionID: 2,
	},
	{
		Text:            "Protokol manakah yang bekerja pada lapisan transport?",
		Options:         []string{"HTTP", "IP", "TCP", "ARP", "DNS"},
		CorrectOptionID: 3,
	},
	{
		Text:            "Ibu kota provinsi Jawa Tengah adalah ...",
		Options:         []string{"Semarang", "Surakarta", "Yogyakarta", "Magelang", "Pekalongan"},
		CorrectOptionID: 1,
	},
	{
		Text:            "Bilangan biner 1010 sama dengan bilangan desimal ...",
		Options:         []string{"8", "9", "12", "10", "11"},
		CorrectOptionID: 4,
	},
	{
		Text:            "Perangkat yang menghubungkan dua jaringan berbeda disebut ...",
		Options:         []string{"Switch", "Hub", "Repeater", "Bridge", "Router"},
		CorrectOptionID: 5,
	},
}
