// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package classifier

import (
	"context"

	"agrotrack/internal/trade"
)

// Classifier 把自由文本短信归类为结构化意图。
// 返回的 Intent 已通过 Validate，调用方可以直接分发
type Classifier interface {
	Classify(ctx context.Context, senderID, text string) (trade.Intent, error)
}
