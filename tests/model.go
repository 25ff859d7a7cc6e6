/*
 * Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package tests

import (
	"embed"
	"fmt"
)

const MODEL_FILE_PATTERN = "models/%s"

//go:embed models/*
var modelFiles embed.FS

func GetModelFileData(fname string) ([]byte, error) {
	return modelFiles.ReadFile(fmt.Sprintf(MODEL_FILE_PATTERN, fname))
}

// GetModelFilePath returns the path of a model file relative to a package
// directory two levels below the repository root.
func GetModelFilePath(fname string) string {
	return fmt.Sprintf("../../tests/"+MODEL_FILE_PATTERN, fname)
}
