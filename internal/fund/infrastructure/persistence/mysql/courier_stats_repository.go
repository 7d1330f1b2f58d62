package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

// CourierWeekStatsModel 外部分析系统投喂的周统计表
// 本服务只读，由上游分析管道写入。
type CourierWeekStatsModel struct {
	gorm.Model
	CourierID        string          `gorm:"column:courier_id;type:varchar(64);uniqueIndex:uniq_courier_week;not null"`
	WeekNumber       int             `gorm:"column:week_number;uniqueIndex:uniq_courier_week;not null"`
	Year             int             `gorm:"column:year;uniqueIndex:uniq_courier_week;not null"`
	WeeklyDeliveries int             `gorm:"column:weekly_deliveries;not null"`
	TotalDeliveries  int             `gorm:"column:total_deliveries;not null"`
	AvgRating        decimal.Decimal `gorm:"column:avg_rating;type:decimal(8,4);not null"`
	AvgDeliveryTime  decimal.Decimal `gorm:"column:avg_delivery_time;type:decimal(8,2);not null"`
	Reliability      decimal.Decimal `gorm:"column:reliability;type:decimal(8,6);not null"`
	Active           bool            `gorm:"column:active;not null;default:true"`
}

func (CourierWeekStatsModel) TableName() string { return "courier_week_stats" }

// courierStatsRepository 周统计只读仓储
type courierStatsRepository struct {
	db *gorm.DB
}

// NewCourierStatsRepository 创建周统计投喂仓储
func NewCourierStatsRepository(db *gorm.DB) domain.CourierStatsProvider {
	return &courierStatsRepository{db: db}
}

func (r *courierStatsRepository) ListActiveCourierStats(ctx context.Context, week, year int) ([]domain.CourierWeekStats, error) {
	var models []CourierWeekStatsModel
	err := r.db.WithContext(ctx).
		Where("week_number = ? AND year = ? AND active = ?", week, year, true).
		Order("courier_id asc").Find(&models).Error
	if err != nil {
		return nil, err
	}

	stats := make([]domain.CourierWeekStats, len(models))
	for i, m := range models {
		stats[i] = domain.CourierWeekStats{
			CourierID:        m.CourierID,
			WeekNumber:       m.WeekNumber,
			Year:             m.Year,
			WeeklyDeliveries: m.WeeklyDeliveries,
			TotalDeliveries:  m.TotalDeliveries,
			AvgRating:        m.AvgRating,
			AvgDeliveryTime:  m.AvgDeliveryTime,
			Reliability:      m.Reliability,
		}
	}
	return stats, nil
}
