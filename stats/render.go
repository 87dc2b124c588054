package stats

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// ScoreReportRender 定義輸出行為
type ScoreReportRender interface {
	Write(w io.Writer, r *ScoreReport) error
}

// Json渲染
type JsonScoreReportRender struct{}

func (jr *JsonScoreReportRender) Write(w io.Writer, r *ScoreReport) error {
	return json.NewEncoder(w).Encode(r)
}

// YAML渲染
type YAMLScoreReportRender struct{}

func (yr *YAMLScoreReportRender) Write(w io.Writer, r *ScoreReport) error {
	// 一維陣列（Collect/Freq/Target）輸出成 flow style：[..., ...]，
	// 外層結構維持預設展開
	return forceReadableList(w, r)
}

// YAML 內層方法
func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}

	// 自頂向下調整所有 sequence node 的 style：
	// - 最內層一維（或本身就是一維）=> flow style: [...]
	// - 含子 sequence 的外層維度 => 保持預設 block（展開）
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
		return

	case yaml.SequenceNode:
		hasChildSeq := false
		for _, c := range n.Content {
			if c != nil && c.Kind == yaml.SequenceNode {
				hasChildSeq = true
				break
			}
		}

		// 先遞迴處理子節點（讓最內層先被標記成 flow）
		for _, c := range n.Content {
			styleReadableSequences(c)
		}

		if !hasChildSeq {
			n.Style = yaml.FlowStyle
		}
		return

	default:
		// Scalar / Alias 等不處理
		return
	}
}
