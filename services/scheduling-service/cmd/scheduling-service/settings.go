package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/config"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/slots"
)

type settings struct {
	Service         string
	Port            string
	GRPCPort        string
	DatabaseURL     string
	DBMaxConns      int
	JWTSecret       string
	JWTTTL          time.Duration
	KafkaBrokers    string
	RedisAddr       string
	ChatRateLimit   int
	ChatRateWindow  time.Duration
	CORSOrigins     []string
	RequestTimeout  time.Duration
	Calendar        slots.Calendar
	SearchParallel  int
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

func loadSettings() (settings, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	s := settings{
		Service:      config.String("SERVICE_NAME", "scheduling-service"),
		KafkaBrokers: config.String("KAFKA_BROKERS", ""),
		RedisAddr:    config.String("REDIS_ADDR", ""),
		CORSOrigins:  config.List("CORS_ALLOWED_ORIGINS", ""),
	}
	var err error
	s.Port, err = config.Port("PORT", "8080")
	collect(err)
	s.GRPCPort, err = config.Port("GRPC_PORT", "9090")
	collect(err)
	s.DatabaseURL, err = config.RequiredString("DATABASE_URL")
	collect(err)
	s.JWTSecret, err = config.RequiredString("JWT_SECRET")
	collect(err)
	s.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10)
	collect(err)
	s.JWTTTL, err = config.Duration("JWT_TTL", time.Hour)
	collect(err)
	s.ChatRateLimit, err = config.Int("CHAT_RATE_LIMIT", 20)
	collect(err)
	s.ChatRateWindow, err = config.Duration("CHAT_RATE_WINDOW", 15*time.Minute)
	collect(err)
	timeoutSecs, err := config.Int("REQUEST_TIMEOUT_SECONDS", 10)
	collect(err)
	s.RequestTimeout = time.Duration(timeoutSecs) * time.Second
	s.SearchParallel, err = config.Int("SEARCH_PARALLELISM", 1)
	collect(err)
	failures, err := config.Int("BREAKER_CONSECUTIVE_FAILURES", 5)
	collect(err)
	s.BreakerFailures = failures
	s.BreakerOpenFor, err = config.Duration("BREAKER_OPEN_FOR", 10*time.Second)
	collect(err)

	s.Calendar, err = loadCalendar()
	collect(err)

	if s.ChatRateLimit <= 0 || s.ChatRateWindow <= 0 {
		errs = append(errs, errors.New("CHAT_RATE_LIMIT and CHAT_RATE_WINDOW must be positive"))
	}
	if s.BreakerFailures < 0 {
		errs = append(errs, errors.New("BREAKER_CONSECUTIVE_FAILURES must not be negative"))
	}
	return s, errors.Join(errs...)
}

// loadCalendar reads the business calendar. It is validated here and never
// changes while the process runs.
func loadCalendar() (slots.Calendar, error) {
	cal := slots.DefaultCalendar()
	interval, err := config.Int("SLOT_INTERVAL_MINUTES", int(cal.Interval/time.Minute))
	if err != nil {
		return cal, err
	}
	cal.Interval = time.Duration(interval) * time.Minute
	if cal.OpenHour, err = config.Int("BUSINESS_OPEN_HOUR", cal.OpenHour); err != nil {
		return cal, err
	}
	if cal.CloseHour, err = config.Int("BUSINESS_CLOSE_HOUR", cal.CloseHour); err != nil {
		return cal, err
	}
	if cal.ModificationWindow, err = config.Duration("MODIFICATION_WINDOW", cal.ModificationWindow); err != nil {
		return cal, err
	}
	if cal.HorizonDays, err = config.Int("SEARCH_HORIZON_DAYS", cal.HorizonDays); err != nil {
		return cal, err
	}
	if err := cal.Validate(); err != nil {
		return cal, fmt.Errorf("calendar: %w", err)
	}
	return cal, nil
}
