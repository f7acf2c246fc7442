package app

import (
	"context"
	"errors"
	"net/http"

	"Civic_Report/internal/model"
	"Civic_Report/internal/service"

	"go.uber.org/zap"
)

var errSeedInProduction = errors.New("refusing to seed in production")

// SeedBadges 默认徽章目录
var SeedBadges = []service.BadgeInput{
	{Name: "Starter", Description: "Welcome to the community!", PointsRequired: 0, Icon: "🌟"},
	{Name: "Active Citizen", Description: "You're making a difference!", PointsRequired: 50, Icon: "🏆"},
	{Name: "Champion", Description: "A true community champion!", PointsRequired: 150, Icon: "🥇"},
	{Name: "Hero", Description: "You're a community hero!", PointsRequired: 300, Icon: "🦸"},
	{Name: "Legend", Description: "A legendary community member!", PointsRequired: 500, Icon: "👑"},
}

// SeedCategories 默认问题类别，Assigned 为演示执法人员负责的类别
var SeedCategories = []struct {
	service.CategoryInput
	Assigned bool
}{
	{service.CategoryInput{Name: "Road Potholes", Description: "Potholes and uneven road surfaces", Department: "Municipal Corporation", DefaultEstimateHours: 168}, true},
	{service.CategoryInput{Name: "Garbage Overflow", Description: "Uncollected waste and garbage overflow", Department: "Municipal Corporation", DefaultEstimateHours: 24}, true},
	{service.CategoryInput{Name: "Streetlight Issues", Description: "Non-working or flickering streetlights", Department: "Electricity Board", DefaultEstimateHours: 72}, false},
	{service.CategoryInput{Name: "Traffic Signal Problems", Description: "Malfunctioning traffic signals", Department: "Traffic Police", DefaultEstimateHours: 48}, false},
	{service.CategoryInput{Name: "Water Supply Issues", Description: "Leaking taps, burst pipelines", Department: "Water Supply Board", DefaultEstimateHours: 24}, false},
	{service.CategoryInput{Name: "Public Toilet Issues", Description: "Cleanliness and availability of public toilets", Department: "Municipal Corporation", DefaultEstimateHours: 12}, true},
}

var seedAccounts = []service.CreateUserInput{
	{Email: "citizen@test.com", Name: "John Citizen", Phone: "+1234567890", Role: model.RoleCitizen},
	{Email: "authority@test.com", Name: "Jane Authority", Phone: "+1234567891", Role: model.RoleAuthority},
	{Email: "admin@test.com", Name: "Admin User", Phone: "+1234567892", Role: model.RoleAdmin},
}

// SeedResult 新建的数量与演示账号的 token
type SeedResult struct {
	BadgesCreated     int               `json:"badges_created"`
	CategoriesCreated int               `json:"categories_created"`
	UsersCreated      int               `json:"users_created"`
	Tokens            map[string]string `json:"tokens"`
}

// Seed 幂等：按名称/邮箱跳过已存在的记录，重复执行只会补齐缺失的数据
func (a *App) Seed(ctx context.Context, password string) (*SeedResult, error) {
	if a.Config.Env == "production" {
		return nil, errSeedInProduction
	}
	res := &SeedResult{Tokens: map[string]string{}}

	badges, err := a.Admin.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	haveBadge := make(map[string]bool, len(badges))
	for _, b := range badges {
		haveBadge[b.Name] = true
	}
	for _, in := range SeedBadges {
		if haveBadge[in.Name] {
			continue
		}
		if _, err = a.Admin.CreateBadge(ctx, in); err != nil {
			return nil, err
		}
		res.BadgesCreated++
	}

	categories, err := a.Admin.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryIDs[c.Name] = c.ID
	}
	for _, c := range SeedCategories {
		if _, ok := categoryIDs[c.Name]; ok {
			continue
		}
		created, err := a.Admin.CreateCategory(ctx, c.CategoryInput)
		if err != nil {
			return nil, err
		}
		categoryIDs[c.Name] = created.ID
		res.CategoriesCreated++
	}

	for _, in := range seedAccounts {
		in.Password = password
		user, err := a.Users.CreateUser(ctx, in)
		switch {
		case err == nil:
			res.UsersCreated++
		case service.StatusCode(err) == http.StatusConflict:
			if user, err = a.Users.FindByEmail(ctx, in.Email); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}

		if user.Role == model.RoleAuthority {
			for _, c := range SeedCategories {
				if !c.Assigned {
					continue
				}
				// 已分配时 AssignAuthority 不报错
				if err = a.Admin.AssignAuthority(ctx, user.ID, categoryIDs[c.Name]); err != nil {
					return nil, err
				}
			}
		}
		token, err := a.Tokens.Generate(user.ID, string(user.Role))
		if err != nil {
			return nil, err
		}
		res.Tokens[string(user.Role)] = token
	}

	a.Logger.Info("seed finished",
		zap.Int("badges_created", res.BadgesCreated),
		zap.Int("categories_created", res.CategoriesCreated),
		zap.Int("users_created", res.UsersCreated))
	return res, nil
}
