package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gradestats/models"
	"gradestats/services"
)

var (
	subjectsRegisteredCounter prometheus.Counter
	gradeRowsCreatedCounter   prometheus.Counter
	gradeRowsUpdatedCounter   prometheus.Counter
	pagesEnrichedCounter      prometheus.Counter
)

func init() {
	subjectsRegisteredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subjects_registered_total",
			Help: "Total number of new subjects inserted into the database.",
		},
	)
	gradeRowsCreatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grade_rows_created_total",
			Help: "Total number of semester grade rows created.",
		},
	)
	gradeRowsUpdatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grade_rows_updated_total",
			Help: "Total number of semester grade rows updated.",
		},
	)
	pagesEnrichedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_pages_enriched_total",
			Help: "Total number of subjects enriched from the course catalog.",
		},
	)
	prometheus.MustRegister(
		subjectsRegisteredCounter,
		gradeRowsCreatedCounter,
		gradeRowsUpdatedCounter,
		pagesEnrichedCounter,
	)
}

func runServer(a *app) {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupSubjectRoutes(router, a.db, a.log)
	setupSearchRoutes(router, a.db, a.log)

	cronScheduler := cron.New()
	cronScheduler.AddFunc(a.cfg.CronSchedule, func() {
		a.log.Info("Running scheduled crawl job...")
		ctx := context.Background()
		if err := runCrawl(ctx, a); err != nil {
			a.log.Error("Scheduled crawl failed", zap.Error(err))
			return
		}
		if err := runPopulate(ctx, a); err != nil {
			a.log.Error("Scheduled populate failed", zap.Error(err))
			return
		}
		if err := runEnrich(ctx, a); err != nil {
			a.log.Error("Scheduled enrichment failed", zap.Error(err))
			return
		}
		a.log.Info("Scheduled crawl job completed")
	})
	cronScheduler.Start()

	a.log.Info("Starting server", zap.String("port", a.cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		a.log.Fatal("Failed to run server", zap.Error(err))
	}
}

// subjectView is the list representation: the subject plus statistics
// derived from its most recent semester.
type subjectView struct {
	models.Subject
	AverageGrade      string  `json:"average_grade"`
	FailRate          float64 `json:"fail_rate"`
	ParticipantsTotal int     `json:"participants_total"`
}

func newSubjectView(subject models.Subject) subjectView {
	view := subjectView{Subject: subject, AverageGrade: "N/A"}
	if len(subject.Grades) > 0 {
		latest := subject.Grades[:1]
		view.AverageGrade = services.AverageGrade(latest)
		view.FailRate = services.FailRate(latest)
		view.ParticipantsTotal = latest[0].ParticipantsTotal
	}
	view.Grades = nil
	return view
}

func setupSubjectRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/subjects")

	rg.GET("/", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "12"))
		if pageSize < 1 || pageSize > 100 {
			pageSize = 12
		}

		sortColumn := "name"
		if c.Query("sort_by") == "points" {
			sortColumn = "study_points"
		}
		sortOrder := "asc"
		if c.Query("sort_order") == "desc" {
			sortOrder = "desc"
		}

		query := db.Model(&models.Subject{})
		if search := c.Query("search"); search != "" {
			pattern := "%" + search + "%"
			query = query.Where("subjects.id ILIKE ? OR subjects.name ILIKE ?", pattern, pattern)
		}
		if department := c.Query("department"); department != "" {
			query = query.Where("subjects.institute_id = ?", department)
		}
		if university := c.Query("university"); university != "" {
			query = query.
				Joins("JOIN departments ON departments.id = subjects.institute_id").
				Where("departments.university_id = ?", university)
		}
		if language := c.Query("language"); language != "" {
			query = query.Where("subjects.language = ?", language)
		}
		if level := c.Query("study_level"); level != "" {
			query = query.Where("subjects.study_level = ?", level)
		}

		var totalCount int64
		if err := query.Count(&totalCount).Error; err != nil {
			log.Error("Database count for subjects failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var subjects []models.Subject
		err := query.
			Preload("Department.University").
			Preload("Grades", func(db *gorm.DB) *gorm.DB {
				return db.Order("year DESC, semester DESC")
			}).
			Order("subjects." + sortColumn + " " + sortOrder).
			Limit(pageSize).
			Offset((page - 1) * pageSize).
			Find(&subjects).Error
		if err != nil {
			log.Error("Database query for subjects failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		views := make([]subjectView, 0, len(subjects))
		for _, subject := range subjects {
			views = append(views, newSubjectView(subject))
		}

		totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))
		c.JSON(http.StatusOK, gin.H{
			"subjects":     views,
			"total_count":  totalCount,
			"total_pages":  totalPages,
			"current_page": page,
		})
	})

	rg.GET("/popular", func(c *gin.Context) {
		type popularRow struct {
			ID    string
			Total int
		}

		result := make(map[string][]subjectView)
		for _, code := range services.UniversityCodes() {
			var rows []popularRow
			err := db.Model(&models.Subject{}).
				Select("subjects.id, SUM(subject_semester_grades.participants_total) AS total").
				Joins("JOIN departments ON departments.id = subjects.institute_id").
				Joins("JOIN subject_semester_grades ON subject_semester_grades.subject_id = subjects.id").
				Where("departments.university_id = ?", code).
				Group("subjects.id").
				Order("total DESC").
				Limit(3).
				Scan(&rows).Error
			if err != nil {
				log.Error("Database query for popular subjects failed",
					zap.String("university_id", code), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			if len(rows) == 0 {
				continue
			}

			ids := make([]string, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.ID)
			}
			var subjects []models.Subject
			err = db.
				Preload("Department.University").
				Preload("Grades", func(db *gorm.DB) *gorm.DB {
					return db.Order("year DESC, semester DESC")
				}).
				Where("id IN ?", ids).
				Find(&subjects).Error
			if err != nil {
				log.Error("Database query for popular subjects failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}

			// Keep the popularity order from the aggregate query.
			byID := make(map[string]models.Subject, len(subjects))
			for _, subject := range subjects {
				byID[subject.ID] = subject
			}
			views := make([]subjectView, 0, len(rows))
			for _, row := range rows {
				if subject, ok := byID[row.ID]; ok {
					views = append(views, newSubjectView(subject))
				}
			}
			result[code] = views
		}

		c.JSON(http.StatusOK, result)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")

		var subject models.Subject
		err := db.
			Preload("Department.University").
			Preload("Grades", func(db *gorm.DB) *gorm.DB {
				return db.Order("year ASC, semester ASC")
			}).
			First(&subject, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
				return
			}
			log.Error("Database query for subject failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		totals := map[string]int{}
		participants := 0
		for _, g := range subject.Grades {
			totals["A"] += g.GradeA
			totals["B"] += g.GradeB
			totals["C"] += g.GradeC
			totals["D"] += g.GradeD
			totals["E"] += g.GradeE
			totals["F"] += g.GradeF
			totals["pass"] += g.GradePass
			totals["fail"] += g.GradeFail
			participants += g.ParticipantsTotal
		}

		c.JSON(http.StatusOK, gin.H{
			"subject":            subject,
			"grade_totals":       totals,
			"participants_total": participants,
			"average_grade":      services.AverageGrade(subject.Grades),
			"fail_rate":          services.FailRate(subject.Grades),
			"grade_history":      subject.Grades,
		})
	})
}

func setupSearchRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	router.GET("/search", func(c *gin.Context) {
		query := c.Query("query")
		if len(query) < 2 {
			c.JSON(http.StatusOK, gin.H{"subjects": []models.Subject{}})
			return
		}

		pattern := "%" + query + "%"
		var subjects []models.Subject
		err := db.
			Preload("Department.University").
			Where("id ILIKE ? OR name ILIKE ?", pattern, pattern).
			Order("id ASC").
			Limit(20).
			Find(&subjects).Error
		if err != nil {
			log.Error("Database search for subjects failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"subjects": subjects})
	})
}
