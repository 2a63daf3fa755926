package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"acey/internal/database"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
)

// EntitlementService resolves installation, trial and enterprise-override
// lookups against MongoDB with a Redis-backed cache. Both stores are optional:
// without MongoDB every lookup degrades to its safe default (not installed,
// no trial, no override) plus whatever the config grants.
type EntitlementService struct {
	mongoDB  *database.MongoDB
	redis    *RedisService
	local    *gocache.Cache
	override map[string]bool // user IDs with unconditional enterprise access
}

// NewEntitlementService creates an entitlement service
func NewEntitlementService(mongoDB *database.MongoDB, redis *RedisService, overrideUserIDs []string) *EntitlementService {
	override := make(map[string]bool, len(overrideUserIDs))
	for _, id := range overrideUserIDs {
		if id != "" {
			override[id] = true
		}
	}
	return &EntitlementService{
		mongoDB:  mongoDB,
		redis:    redis,
		local:    gocache.New(5*time.Minute, 10*time.Minute),
		override: override,
	}
}

// GetInstalledSkills returns the skill IDs the user installed from the Skill Store
func (s *EntitlementService) GetInstalledSkills(ctx context.Context, userID string) ([]string, error) {
	cacheKey := "installed:" + userID
	if cached, ok := s.local.Get(cacheKey); ok {
		return cached.([]string), nil
	}
	if ids, ok := s.redisGetList(ctx, cacheKey); ok {
		s.local.Set(cacheKey, ids, gocache.DefaultExpiration)
		return ids, nil
	}

	if s.mongoDB == nil {
		return nil, nil
	}

	coll := s.mongoDB.Collection(database.CollectionUserSkills)
	cursor, err := coll.Find(ctx, bson.M{"userId": userID, "enabled": true})
	if err != nil {
		return nil, fmt.Errorf("failed to get installed skills: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		SkillID string `bson:"skillId"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode installed skills: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.SkillID)
	}

	s.local.Set(cacheKey, ids, gocache.DefaultExpiration)
	s.redisSetList(ctx, cacheKey, ids)
	return ids, nil
}

// CheckTrialAccess reports whether the user has an unexpired trial for the skill
func (s *EntitlementService) CheckTrialAccess(ctx context.Context, userID, skillID string) (bool, error) {
	if s.mongoDB == nil {
		return false, nil
	}

	coll := s.mongoDB.Collection(database.CollectionSkillTrials)
	var trial struct {
		ExpiresAt time.Time `bson:"expiresAt"`
	}
	err := coll.FindOne(ctx, bson.M{"userId": userID, "skillId": skillID}).Decode(&trial)
	if err != nil {
		return false, nil // no trial record
	}

	return trial.ExpiresAt.After(time.Now()), nil
}

// CheckEnterpriseOverride reports whether the user holds an enterprise
// override for the skill. Config-level overrides apply to every skill.
func (s *EntitlementService) CheckEnterpriseOverride(ctx context.Context, userID, skillID string) (bool, error) {
	if s.override[userID] {
		return true, nil
	}

	if s.mongoDB == nil {
		return false, nil
	}

	coll := s.mongoDB.Collection(database.CollectionUserSkills)
	count, err := coll.CountDocuments(ctx, bson.M{
		"userId":             userID,
		"skillId":            skillID,
		"enterpriseOverride": true,
	})
	if err != nil {
		return false, nil
	}
	return count > 0, nil
}

// GrantTrial starts a trial for a user/skill pair (admin surface)
func (s *EntitlementService) GrantTrial(ctx context.Context, userID, skillID string, duration time.Duration) error {
	if s.mongoDB == nil {
		return fmt.Errorf("trial grants require MongoDB")
	}

	coll := s.mongoDB.Collection(database.CollectionSkillTrials)
	_, err := coll.InsertOne(ctx, bson.M{
		"userId":    userID,
		"skillId":   skillID,
		"grantedAt": time.Now(),
		"expiresAt": time.Now().Add(duration),
	})
	if err != nil {
		return fmt.Errorf("failed to grant trial: %w", err)
	}

	log.Printf("✅ [ENTITLEMENT] Granted %s trial of %s to user %s", duration, skillID, userID)
	return nil
}

// InvalidateUser drops cached entitlements for a user (call after install/uninstall)
func (s *EntitlementService) InvalidateUser(ctx context.Context, userID string) {
	key := "installed:" + userID
	s.local.Delete(key)
	if s.redis != nil {
		if err := s.redis.Client().Del(ctx, key).Err(); err != nil {
			log.Printf("⚠️ [ENTITLEMENT] Failed to invalidate Redis cache for %s: %v", userID, err)
		}
	}
}

func (s *EntitlementService) redisGetList(ctx context.Context, key string) ([]string, bool) {
	if s.redis == nil {
		return nil, false
	}
	ids, err := s.redis.Client().SMembers(ctx, key).Result()
	if err != nil || len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

func (s *EntitlementService) redisSetList(ctx context.Context, key string, ids []string) {
	if s.redis == nil || len(ids) == 0 {
		return
	}
	pipe := s.redis.Client().Pipeline()
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, 5*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️ [ENTITLEMENT] Failed to cache %s in Redis: %v", key, err)
	}
}
