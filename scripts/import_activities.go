// 导入练习定义
//
// 读取 YAML 或 JSON 文件（JSON 是 YAML 的子集），逐条校验后按 ID 写入数据库，
// 已存在的活动会被覆盖。任何一条校验失败都不会写入。
//
// 用法: go run scripts/import_activities.go -file activities.yaml [-config configs] [-dry-run]
package main

import (
	"activity_engine/internal/config"
	"activity_engine/internal/engine"
	"activity_engine/internal/model"
	"activity_engine/internal/repository"
	"activity_engine/pkg/database"
	"activity_engine/pkg/logger"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type importFile struct {
	Lessons []struct {
		ID         string               `yaml:"id"`
		ClassID    string               `yaml:"classId"`
		Activities []engine.RawActivity `yaml:"activities"`
	} `yaml:"lessons"`
}

func load(path string) ([]*model.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析导入文件失败: %w", err)
	}

	var out []*model.Activity
	var invalid int
	seen := map[string]bool{}
	for _, lesson := range f.Lessons {
		for i, raw := range lesson.Activities {
			if _, err := engine.ParseActivity(raw); err != nil {
				log.Printf("lesson %s activity #%d (%s): %v", lesson.ID, i+1, raw.ID, err)
				invalid++
				continue
			}
			if seen[raw.ID] {
				log.Printf("lesson %s: duplicate activity id %s", lesson.ID, raw.ID)
				invalid++
				continue
			}
			seen[raw.ID] = true
			a, err := model.NewActivity(lesson.ID, lesson.ClassID, i+1, raw)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	if invalid > 0 {
		return nil, fmt.Errorf("%d 条活动定义无效", invalid)
	}
	return out, nil
}

func main() {
	file := flag.String("file", "", "导入文件 (yaml/json)")
	configDir := flag.String("config", "configs", "配置文件所在目录")
	dryRun := flag.Bool("dry-run", false, "只校验不写入")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	activities, err := load(*file)
	if err != nil {
		log.Fatalf("校验失败: %v", err)
	}
	log.Printf("校验通过，共 %d 条活动", len(activities))
	if *dryRun {
		return
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	repo := repository.NewActivityRepository(db)
	for _, a := range activities {
		if err := repo.Upsert(a); err != nil {
			logger.Log.Fatal("Failed to import activity", zap.String("activityId", a.ID), zap.Error(err))
		}
	}
	log.Println("完成！")
}
