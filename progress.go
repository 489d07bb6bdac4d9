package main

import (
	"context"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/mitchellh/mapstructure"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressStore — куда дописываются отметки о прохождении уроков.
// По умолчанию прогресс живёт только в сессии (noopProgress).
type ProgressStore interface {
	Completed(ctx context.Context, userID, courseID string) ([]string, error)
	MarkComplete(ctx context.Context, userID, courseID, lessonID string) error
}

type noopProgress struct{}

func (noopProgress) Completed(context.Context, string, string) ([]string, error) { return nil, nil }
func (noopProgress) MarkComplete(context.Context, string, string, string) error  { return nil }

// ---------- postgres ----------

type GormProgress struct {
	db *gorm.DB
}

func NewGormProgress(gormDB *gorm.DB) *GormProgress {
	return &GormProgress{db: gormDB}
}

func (p *GormProgress) Completed(ctx context.Context, userID, courseID string) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).Model(&LessonProgress{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("lesson_id").
		Pluck("lesson_id", &ids).Error
	return ids, err
}

func (p *GormProgress) MarkComplete(ctx context.Context, userID, courseID, lessonID string) error {
	row := LessonProgress{UserID: userID, CourseID: courseID, LessonID: lessonID}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// ---------- redis ----------

type RedisProgress struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisProgress(rdb *goredis.Client) *RedisProgress {
	return &RedisProgress{rdb: rdb, prefix: "learnhub:progress:"}
}

func (p *RedisProgress) key(userID, courseID string) string {
	return p.prefix + userID + ":" + courseID
}

func (p *RedisProgress) Completed(ctx context.Context, userID, courseID string) ([]string, error) {
	ids, err := p.rdb.SMembers(ctx, p.key(userID, courseID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *RedisProgress) MarkComplete(ctx context.Context, userID, courseID, lessonID string) error {
	return p.rdb.SAdd(ctx, p.key(userID, courseID), lessonID).Err()
}

// ---------- firestore ----------

type FirestoreProgress struct {
	client     *firestore.Client
	collection string
}

type progressDoc struct {
	UserID   string   `mapstructure:"userId"`
	CourseID string   `mapstructure:"courseId"`
	Lessons  []string `mapstructure:"lessons"`
}

func NewFirestoreProgress(client *firestore.Client) *FirestoreProgress {
	return &FirestoreProgress{client: client, collection: "lesson_progress"}
}

func (p *FirestoreProgress) doc(userID, courseID string) *firestore.DocumentRef {
	id := strings.ReplaceAll(userID+"_"+courseID, "/", "_")
	return p.client.Collection(p.collection).Doc(id)
}

func (p *FirestoreProgress) Completed(ctx context.Context, userID, courseID string) ([]string, error) {
	snap, err := p.doc(userID, courseID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	var doc progressDoc
	if err := mapstructure.Decode(snap.Data(), &doc); err != nil {
		return nil, err
	}
	sort.Strings(doc.Lessons)
	return doc.Lessons, nil
}

func (p *FirestoreProgress) MarkComplete(ctx context.Context, userID, courseID, lessonID string) error {
	_, err := p.doc(userID, courseID).Set(ctx, map[string]interface{}{
		"userId":    userID,
		"courseId":  courseID,
		"lessons":   firestore.ArrayUnion(lessonID),
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	return err
}
