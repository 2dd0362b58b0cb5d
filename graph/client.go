// 包 graph 提供医疗知识图谱的 Neo4j 访问层.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config 配置知识图谱连接
type Config struct {
	// 连接 URI，如 bolt://localhost:7687
	URI string `json:"uri" yaml:"uri"`
	// 用户名
	Username string `json:"username" yaml:"username"`
	// 密码
	Password string `json:"password" yaml:"password"`
	// 数据库名
	Database string `json:"database" yaml:"database"`
	// 图遍历最大深度
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
}

// DefaultConfig 返回默认图谱配置
func DefaultConfig() Config {
	return Config{
		URI:      "bolt://localhost:7687",
		Username: "neo4j",
		Database: "neo4j",
		MaxDepth: 2,
	}
}

// Client 封装 Neo4j 驱动，提供医疗图谱的类型化查询
type Client struct {
	driver neo4j.DriverWithContext
	config Config
	logger *zap.Logger
}

// NewClient 创建图谱客户端并验证连通性
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	logger = logger.With(zap.String("component", "graph"))
	logger.Info("knowledge graph connected", zap.String("uri", config.URI))

	return &Client{
		driver: driver,
		config: config,
		logger: logger,
	}, nil
}

// Close 关闭图谱连接
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// execute 运行 Cypher 查询并返回记录
func (c *Client) execute(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.config.Database))
	if err != nil {
		return nil, fmt.Errorf("graph query failed: %w", err)
	}
	return result.Records, nil
}

// EntityExists 检查给定标签与名称的实体是否存在
func (c *Client) EntityExists(ctx context.Context, label, name string) (bool, error) {
	cypher, params := existsQuery(label, name)
	records, err := c.execute(ctx, cypher, params)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	count, _ := records[0].Get("count")
	n, ok := count.(int64)
	return ok && n > 0, nil
}

// Fact 表示从图谱提取的一条结构化事实
type Fact struct {
	// 组装好的中文事实文本
	Text string `json:"text"`
	// 中心实体标签
	EntityLabel string `json:"entity_label"`
	// 中心实体名称
	EntityName string `json:"entity_name"`
	// 关系路径描述
	Relation string `json:"relation"`
}

// DiseaseFacts 返回疾病的症状、治疗药物与检查项目事实
func (c *Client) DiseaseFacts(ctx context.Context, disease string) ([]Fact, error) {
	cypher, params := diseaseProfileQuery(disease)
	records, err := c.execute(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	symptoms := stringList(records[0], "symptoms")
	drugs := stringList(records[0], "drugs")
	exams := stringList(records[0], "examinations")

	text := "疾病：" + disease
	relation := "disease"
	if len(symptoms) > 0 {
		text += "\n症状：" + joinNames(symptoms)
		relation += "->symptoms"
	}
	if len(drugs) > 0 {
		text += "\n治疗药物：" + joinNames(drugs)
		relation += "->drugs"
	}
	if len(exams) > 0 {
		text += "\n检查项目：" + joinNames(exams)
		relation += "->examinations"
	}

	return []Fact{{
		Text:        text,
		EntityLabel: LabelDisease,
		EntityName:  disease,
		Relation:    relation,
	}}, nil
}

// SymptomFacts 根据症状返回可能相关的疾病事实
func (c *Client) SymptomFacts(ctx context.Context, symptom string) ([]Fact, error) {
	cypher, params := diseasesBySymptomQuery(symptom)
	records, err := c.execute(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var diseases []string
	for _, rec := range records {
		if name, ok := rec.Get("disease"); ok {
			if s, ok := name.(string); ok {
				diseases = append(diseases, s)
			}
		}
	}
	if len(diseases) == 0 {
		return nil, nil
	}

	return []Fact{{
		Text:        "症状：" + symptom + "\n可能相关疾病：" + joinNames(diseases),
		EntityLabel: LabelSymptom,
		EntityName:  symptom,
		Relation:    "symptom->diseases",
	}}, nil
}

// DrugFacts 根据药物返回其适应疾病事实
func (c *Client) DrugFacts(ctx context.Context, drug string) ([]Fact, error) {
	cypher, params := diseasesByDrugQuery(drug)
	records, err := c.execute(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	diseases := stringList(records[0], "diseases")
	text := "药物：" + drug
	if len(diseases) > 0 {
		text += "\n适应疾病：" + joinNames(diseases)
	}

	return []Fact{{
		Text:        text,
		EntityLabel: LabelDrug,
		EntityName:  drug,
		Relation:    "drug->diseases",
	}}, nil
}

// stringList 从记录中提取字符串列表字段
func stringList(record *neo4j.Record, key string) []string {
	raw, ok := record.Get(key)
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "、"
		}
		out += n
	}
	return out
}
